package schemacache

const keyPrefix = "schemacache:"

// SchemaKey is the cache key of a connection's schema.
func SchemaKey(connectionID string) string {
	return keyPrefix + "schema:" + connectionID
}

// JSONSchemaKey is the cache key of a connection's JSON projection.
func JSONSchemaKey(connectionID string) string {
	return keyPrefix + "schema_json:" + connectionID
}

// BuildMarkerKey is set while a build for the connection is queued or running.
func BuildMarkerKey(connectionID string) string {
	return keyPrefix + "building:" + connectionID
}
