/*
Package fury implements the fury binary serialization format.

A document is a six byte header followed by one framed value. Values are
written with their object identity: an instance reachable along several paths
is written once and referenced afterwards, so shared and cyclic graphs
round-trip to graphs of the same shape.

	f := fury.New()
	if err := f.Register(Point{}, 1); err != nil {
		...
	}
	b, err := f.Serialize(&Point{X: 1, Y: 2})
	...
	var p *Point
	err = f.DeserializeInto(b, &p)

Struct types travel either in schema-consistent mode, where both sides must
declare identical fields, or in compatible mode, where each document carries
the writer's field list and the reader matches fields by name. With meta
sharing, a Session sends every schema once and refers to it by handle in
later documents.

By default every struct and named type must be registered, and documents
naming unregistered types are rejected without instantiating anything. With
WithRequireRegistration(false) types are named by package path and type name.

Types that only encoding/gob can encode go through gob when native fallback is
enabled; LooksLikeGob tells apart gob streams handed to Deserialize by mistake.
*/
package fury
