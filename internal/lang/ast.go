package lang

// Node is an expression in a parsed line. Pos is the byte offset of the
// node in the source.
type Node interface {
	Pos() int
}

// Call is a top-level function call such as s("bd") or hush().
type Call struct {
	Name string
	Args []Node
	At   int
}

// Method is a call chained onto a receiver, as in p.fast(2).
type Method struct {
	Recv Node
	Name string
	Args []Node
	At   int
}

type Ident struct {
	Name string
	At   int
}

type Number struct {
	Value float64
	At    int
}

type String struct {
	Value string
	At    int
}

// Lambda is a one-parameter function: x => x.fast(2).
type Lambda struct {
	Param string
	Body  Node
	At    int
}

func (n *Call) Pos() int   { return n.At }
func (n *Method) Pos() int { return n.At }
func (n *Ident) Pos() int  { return n.At }
func (n *Number) Pos() int { return n.At }
func (n *String) Pos() int { return n.At }
func (n *Lambda) Pos() int { return n.At }
