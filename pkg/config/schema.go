package config

// schemaNode describes a keyword position in the configuration hierarchy.
// It tells the parser and ParsePath how many tokens after the keyword form
// the node's name, and how bracketed values are interpreted.
type schemaNode struct {
	args     int                    // name tokens consumed after the keyword
	set      bool                   // leaf values form a membership set
	list     bool                   // leaf values form an ordered list
	children map[string]*schemaNode // known children
	wildcard *schemaNode            // matches any keyword not in children
}

func (s *schemaNode) child(keyword string) *schemaNode {
	if s == nil {
		return nil
	}
	if c, ok := s.children[keyword]; ok {
		return c
	}
	return s.wildcard
}

// addressBookSchema is shared by the global, named and zone-scoped books.
var addressBookSchema = &schemaNode{children: map[string]*schemaNode{
	"address": {args: 1, children: map[string]*schemaNode{
		"ip-prefix": {},
	}},
	"address-set": {args: 1, children: map[string]*schemaNode{
		"address":     {args: 1},
		"address-set": {args: 1},
	}},
	"attach": {children: map[string]*schemaNode{
		"zone": {args: 1},
	}},
}}

var matchSchema = &schemaNode{children: map[string]*schemaNode{
	"source-address":      {set: true},
	"destination-address": {set: true},
	"application":         {set: true},
	"source-identity":     {set: true},
	"dscp":                {set: true},
	"dscp-except":         {set: true},
	// zone lists of a global-context policy
	"from-zone": {set: true},
	"to-zone":   {set: true},
}}

var thenSchema = &schemaNode{children: map[string]*schemaNode{
	"permit": {children: map[string]*schemaNode{
		"tunnel": {children: map[string]*schemaNode{}},
	}},
	"log": {children: map[string]*schemaNode{}},
	// deny, reject, count and "dscp <codepoint>" are scalar leaves
}}

var policySchema = &schemaNode{args: 1, children: map[string]*schemaNode{
	"match": matchSchema,
	"then":  thenSchema,
}}

// treeSchema defines the security policy hierarchy. Keywords not listed at a
// given depth are handled generically: extra tokens on a block become its
// name, extra tokens on a leaf become its value.
var treeSchema = &schemaNode{children: map[string]*schemaNode{
	"security": {children: map[string]*schemaNode{
		"address-book": {children: map[string]*schemaNode{
			"global": addressBookSchema,
		}, wildcard: addressBookSchema},
		"zones": {children: map[string]*schemaNode{
			"security-zone": {args: 1, children: map[string]*schemaNode{
				"address-book":         addressBookSchema,
				"interfaces":           {},
				"host-inbound-traffic": {},
			}},
		}},
		"policies": {children: map[string]*schemaNode{
			"from-zone": {args: 3, children: map[string]*schemaNode{ // from-zone X to-zone Y
				"policy":              policySchema,
				"apply-groups":        {list: true},
				"apply-groups-except": {list: true},
			}},
			"global": {children: map[string]*schemaNode{
				"policy": policySchema,
			}},
		}},
	}},
	"applications": {children: map[string]*schemaNode{
		"application": {args: 1, children: map[string]*schemaNode{
			"term": {args: 1},
		}},
		"application-set": {args: 1, children: map[string]*schemaNode{
			"application":     {args: 1},
			"application-set": {args: 1},
		}},
	}},
}}
