package annotation

// ClassList is an ordered list of unique class names. A label's YOLO class id is
// its position in the list.
type ClassList struct {
	names []string
}

// NewClassList builds a class list, dropping empty and duplicate names
func NewClassList(names ...string) *ClassList {
	c := &ClassList{}
	for _, n := range names {
		if n == "" {
			continue
		}
		c.ID(n)
	}
	return c
}

// ID returns the index of the first occurrence of name, appending it when new
func (c *ClassList) ID(name string) int {
	if i := c.Index(name); i >= 0 {
		return i
	}
	c.names = append(c.names, name)
	return len(c.names) - 1
}

// Index returns the position of name or -1
func (c *ClassList) Index(name string) int {
	for i, n := range c.names {
		if n == name {
			return i
		}
	}
	return -1
}

// Name returns the class name for id and whether it exists
func (c *ClassList) Name(id int) (string, bool) {
	if id < 0 || id >= len(c.names) {
		return "", false
	}
	return c.names[id], true
}

// Len is the number of classes
func (c *ClassList) Len() int { return len(c.names) }

// Names returns a copy of the class names in id order
func (c *ClassList) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}
