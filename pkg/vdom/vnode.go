package vdom

// VKind is the node type discriminator.
type VKind uint8

const (
	KindElement VKind = iota // <li>, <div>, etc.
	KindText                 // Plain text node
	KindAnchor               // Placeholder the list is positioned after
)

// String returns the string representation of the VKind.
func (k VKind) String() string {
	switch k {
	case KindElement:
		return "Element"
	case KindText:
		return "Text"
	case KindAnchor:
		return "Anchor"
	default:
		return "Unknown"
	}
}

// Props holds string attributes.
type Props map[string]string

// VNode is one node of a List.
type VNode struct {
	ID    uint64 // Assigned by the owning List; the anchor is 0
	Kind  VKind  // Node type
	Tag   string // Element tag name (e.g., "li")
	Props Props  // Attributes
	Text  string // Text content

	list       *List
	prev, next *VNode
	attached   bool
}

// Attached reports whether the node is currently in its list.
func (v *VNode) Attached() bool {
	return v != nil && v.attached
}

// Attr returns an attribute value.
func (v *VNode) Attr(key string) string {
	if v == nil || v.Props == nil {
		return ""
	}
	return v.Props[key]
}

// Template describes the node cloned for each new list item.
type Template struct {
	Kind  VKind
	Tag   string
	Props Props
	Text  string
}

// Element returns an element template.
func Element(tag string, props Props) Template {
	return Template{Kind: KindElement, Tag: tag, Props: props}
}

// clone builds a detached node from the template.
func (t Template) clone(id uint64, list *List) *VNode {
	var props Props
	if len(t.Props) > 0 {
		props = make(Props, len(t.Props))
		for k, v := range t.Props {
			props[k] = v
		}
	}
	return &VNode{
		ID:    id,
		Kind:  t.Kind,
		Tag:   t.Tag,
		Props: props,
		Text:  t.Text,
		list:  list,
	}
}
