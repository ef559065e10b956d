// Package schema builds and projects the table/column description the
// schema cache stores for each connection.
//
// Two build paths exist. LiveBuilder reads the database catalog through a
// scoped database.Introspector. FallbackBuilder reads an offline DDL
// description from a filestore.Store for databases too large to
// introspect. Builder picks one per connection through a Policy.
package schema
