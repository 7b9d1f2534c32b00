package cogen

// Node is an element of a parsed template.
type Node interface {
	Position() Pos
}

// Fragment is one part of a [Line]: either a [Literal] or an [Expr].
type Fragment interface {
	Node
	fragment()
}

// Literal is verbatim text.
type Literal struct {
	Text string
	Pos  Pos
}

// Expr is an interpolated expression.
type Expr struct {
	Source string
	Pos    Pos
}

// Line is one output line. Prefix is the line's leading whitespace, which is
// not repeated in Parts.
type Line struct {
	Prefix string
	Parts  []Fragment
	Pos    Pos
}

// Block is a keyword block opened by a control line and closed by the
// matching "/keyword" line.
type Block struct {
	Prefix  string
	Keyword string
	Args    string
	ArgsPos Pos
	Body    []Node
	Pos     Pos
}

// Conditional is an if/elif/else chain. Each branch is a [Block] whose
// Keyword is "if", "elif" or "else".
type Conditional struct {
	Branches []*Block
	Pos      Pos
}

// Program is a parsed template.
type Program struct {
	Source string
	Nodes  []Node
	// Dedent is the number of leading bytes removed from each source line.
	Dedent int
}

func (n *Literal) Position() Pos     { return n.Pos }
func (n *Expr) Position() Pos        { return n.Pos }
func (n *Line) Position() Pos        { return n.Pos }
func (n *Block) Position() Pos       { return n.Pos }
func (n *Conditional) Position() Pos { return n.Pos }

func (*Literal) fragment() {}
func (*Expr) fragment()    {}

// Blank reports whether the line has no content.
func (n *Line) Blank() bool { return len(n.Parts) == 0 }
