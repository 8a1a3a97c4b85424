// Package pyast defines the abstract syntax tree for the guest language.
//
// The node set is a closed tagged variant: every statement and expression kind
// the obfuscator can encounter is a concrete struct implementing Stmt or Expr,
// and every pass dispatches over them with exhaustive type switches. Nodes are
// owned by their parent; the tree contains no cycles and no parent pointers
// (scope lookup is handled by the resolver's arena, not by back-references).
package pyast

// Pos is a source position. The zero value means "generated node".
type Pos struct {
	Line int
	Col  int
}

// IsValid reports whether the position came from source text.
func (p Pos) IsValid() bool { return p.Line > 0 }

// Node is implemented by all AST nodes.
type Node interface {
	Position() Pos
}

// Stmt is implemented by all statement nodes.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is implemented by all expression nodes.
type Expr interface {
	Node
	exprNode()
}

// ExprContext distinguishes reads from writes of a Name.
type ExprContext int

const (
	Load ExprContext = iota
	Store
)

// --- Statements ---

// Module is the root node for one source file.
type Module struct {
	Body []Stmt
	Pos  Pos
}

// Param is a single function or lambda parameter.
type Param struct {
	Name    string
	Default Expr   // nil when the parameter has no default
	Star    string // "", "*" or "**"
	Pos     Pos
}

// FunctionDef is a def statement.
type FunctionDef struct {
	Name       string
	Params     []*Param
	Body       []Stmt
	Decorators []Expr
	Pos        Pos
}

// ClassDef is a class statement.
type ClassDef struct {
	Name       string
	Bases      []Expr
	Body       []Stmt
	Decorators []Expr
	Pos        Pos
}

// Return is a return statement. Value is nil for a bare return.
type Return struct {
	Value Expr
	Pos   Pos
}

// Assign is one or more chained assignments: a = b = value.
type Assign struct {
	Targets []Expr
	Value   Expr
	Pos     Pos
}

// AugAssign is an augmented assignment such as x += 1.
type AugAssign struct {
	Target Expr
	Op     string // binary operator without '='
	Value  Expr
	Pos    Pos
}

// ExprStmt is an expression evaluated for effect (calls, docstrings, yields).
type ExprStmt struct {
	Value Expr
	Pos   Pos
}

// If is a conditional. An elif chain is represented as a nested If in Else.
type If struct {
	Cond Expr
	Body []Stmt
	Else []Stmt
	Pos  Pos
}

// While is a while loop. Else runs when the loop exits without break.
type While struct {
	Cond Expr
	Body []Stmt
	Else []Stmt
	Pos  Pos
}

// For is a for-in loop.
type For struct {
	Target Expr
	Iter   Expr
	Body   []Stmt
	Else   []Stmt
	Pos    Pos
}

// Break is a break statement.
type Break struct{ Pos Pos }

// Continue is a continue statement.
type Continue struct{ Pos Pos }

// Pass is a pass statement.
type Pass struct{ Pos Pos }

// Raise is a raise statement. Exc may be nil (bare re-raise).
type Raise struct {
	Exc   Expr
	Cause Expr // raise X from Y
	Pos   Pos
}

// ExceptHandler is one except clause of a Try.
type ExceptHandler struct {
	Type Expr   // nil for a bare except
	Name string // "" when no "as name" binding
	Body []Stmt
	Pos  Pos
}

// Try is a try/except/else/finally statement.
type Try struct {
	Body     []Stmt
	Handlers []*ExceptHandler
	Else     []Stmt
	Finally  []Stmt
	Pos      Pos
}

// WithItem is one context manager of a With statement.
type WithItem struct {
	Context Expr
	As      Expr // nil when no "as target"
	Pos     Pos
}

// With is a with statement.
type With struct {
	Items []*WithItem
	Body  []Stmt
	Pos   Pos
}

// Alias is one name binding of an import statement.
type Alias struct {
	Name   string // possibly dotted
	AsName string // "" when not aliased
	Pos    Pos
}

// Import is an import statement.
type Import struct {
	Names []*Alias
	Pos   Pos
}

// ImportFrom is a from-import statement.
type ImportFrom struct {
	Module string
	Names  []*Alias
	Pos    Pos
}

// Global declares names as module-level inside a function.
type Global struct {
	Names []string
	Pos   Pos
}

// Nonlocal declares names as belonging to an enclosing function scope.
type Nonlocal struct {
	Names []string
	Pos   Pos
}

// --- Expressions ---

// Name is an identifier reference or binding.
type Name struct {
	ID  string
	Ctx ExprContext
	Pos Pos
}

// StringLit is a plain string or bytes literal. Value holds the decoded
// text; Bytes marks a b-prefixed literal, whose Value is raw byte content.
type StringLit struct {
	Value string
	Bytes bool
	Pos   Pos
}

// FString is a formatted string literal. It is carried opaquely: the raw
// source token is preserved and emitted verbatim, and no pass rewrites its
// contents. Names used only inside f-strings therefore stay unrenamed, which
// keeps behavior intact at the cost of leaving those occurrences readable.
type FString struct {
	Raw string // full token including prefix and quotes
	Pos Pos
}

// NumberLit is a numeric literal. IntVal is meaningful only when IsInt.
type NumberLit struct {
	Raw    string
	IsInt  bool
	IntVal int64
	Pos    Pos
}

// BoolLit is True or False.
type BoolLit struct {
	Value bool
	Pos   Pos
}

// NoneLit is None.
type NoneLit struct{ Pos Pos }

// Keyword is a keyword argument at a call site. Name is "" for **expr.
type Keyword struct {
	Name  string
	Value Expr
	Pos   Pos
}

// Call is a function or method call.
type Call struct {
	Func     Expr
	Args     []Expr
	Keywords []*Keyword
	Pos      Pos
}

// Attribute is value.attr access.
type Attribute struct {
	Value Expr
	Attr  string
	Ctx   ExprContext
	Pos   Pos
}

// Subscript is value[index] access.
type Subscript struct {
	Value Expr
	Index Expr
	Ctx   ExprContext
	Pos   Pos
}

// Slice is a lo:hi:step subscript index. Any field may be nil.
type Slice struct {
	Lo   Expr
	Hi   Expr
	Step Expr
	Pos  Pos
}

// BinOp is a binary arithmetic or bitwise operation.
type BinOp struct {
	Left  Expr
	Op    string // "+", "-", "*", "/", "//", "%", "**", "^", "&", "|", "<<", ">>", "@"
	Right Expr
	Pos   Pos
}

// UnaryOp is a unary operation: -, +, ~, not.
type UnaryOp struct {
	Op      string
	Operand Expr
	Pos     Pos
}

// BoolOp is an and/or chain with two or more operands.
type BoolOp struct {
	Op     string // "and" or "or"
	Values []Expr
	Pos    Pos
}

// Compare is a comparison chain: Left Ops[0] Comparators[0] Ops[1] ...
type Compare struct {
	Left        Expr
	Ops         []string // "==", "!=", "<", "<=", ">", ">=", "in", "not in", "is", "is not"
	Comparators []Expr
	Pos         Pos
}

// ListLit is a list display.
type ListLit struct {
	Elts []Expr
	Pos  Pos
}

// TupleLit is a tuple display. Paren records whether it was parenthesized.
type TupleLit struct {
	Elts  []Expr
	Paren bool
	Pos   Pos
}

// DictLit is a dict display. Keys[i] pairs with Values[i].
type DictLit struct {
	Keys   []Expr
	Values []Expr
	Pos    Pos
}

// Lambda is an anonymous function expression.
type Lambda struct {
	Params []*Param
	Body   Expr
	Pos    Pos
}

// Yield is a yield expression. Its presence marks the enclosing function as a
// generator, which exempts it from control-flow flattening.
type Yield struct {
	Value Expr // nil for a bare yield
	Pos   Pos
}

// Starred is *expr in a call argument list or assignment target.
type Starred struct {
	Value Expr
	Pos   Pos
}

// CompFor is one "for target in iter [if cond]*" clause of a comprehension.
type CompFor struct {
	Target Expr
	Iter   Expr
	Ifs    []Expr
	Pos    Pos
}

// ListComp is a list comprehension. It opens its own scope.
type ListComp struct {
	Elt        Expr
	Generators []*CompFor
	Pos        Pos
}

// Conditional is a ternary expression: body if cond else orelse.
type Conditional struct {
	Cond   Expr
	Body   Expr
	Orelse Expr
	Pos    Pos
}

// --- interface plumbing ---

func (n *Module) Position() Pos        { return n.Pos }
func (n *FunctionDef) Position() Pos   { return n.Pos }
func (n *ClassDef) Position() Pos      { return n.Pos }
func (n *Return) Position() Pos        { return n.Pos }
func (n *Assign) Position() Pos        { return n.Pos }
func (n *AugAssign) Position() Pos     { return n.Pos }
func (n *ExprStmt) Position() Pos      { return n.Pos }
func (n *If) Position() Pos            { return n.Pos }
func (n *While) Position() Pos         { return n.Pos }
func (n *For) Position() Pos           { return n.Pos }
func (n *Break) Position() Pos         { return n.Pos }
func (n *Continue) Position() Pos      { return n.Pos }
func (n *Pass) Position() Pos          { return n.Pos }
func (n *Raise) Position() Pos         { return n.Pos }
func (n *Try) Position() Pos           { return n.Pos }
func (n *ExceptHandler) Position() Pos { return n.Pos }
func (n *With) Position() Pos          { return n.Pos }
func (n *WithItem) Position() Pos      { return n.Pos }
func (n *Import) Position() Pos        { return n.Pos }
func (n *ImportFrom) Position() Pos    { return n.Pos }
func (n *Alias) Position() Pos         { return n.Pos }
func (n *Global) Position() Pos        { return n.Pos }
func (n *Nonlocal) Position() Pos      { return n.Pos }
func (n *Param) Position() Pos         { return n.Pos }

func (n *Name) Position() Pos        { return n.Pos }
func (n *StringLit) Position() Pos   { return n.Pos }
func (n *FString) Position() Pos     { return n.Pos }
func (n *NumberLit) Position() Pos   { return n.Pos }
func (n *BoolLit) Position() Pos     { return n.Pos }
func (n *NoneLit) Position() Pos     { return n.Pos }
func (n *Call) Position() Pos        { return n.Pos }
func (n *Keyword) Position() Pos     { return n.Pos }
func (n *Attribute) Position() Pos   { return n.Pos }
func (n *Subscript) Position() Pos   { return n.Pos }
func (n *Slice) Position() Pos       { return n.Pos }
func (n *BinOp) Position() Pos       { return n.Pos }
func (n *UnaryOp) Position() Pos     { return n.Pos }
func (n *BoolOp) Position() Pos      { return n.Pos }
func (n *Compare) Position() Pos     { return n.Pos }
func (n *ListLit) Position() Pos     { return n.Pos }
func (n *TupleLit) Position() Pos    { return n.Pos }
func (n *DictLit) Position() Pos     { return n.Pos }
func (n *Lambda) Position() Pos      { return n.Pos }
func (n *Yield) Position() Pos       { return n.Pos }
func (n *Starred) Position() Pos     { return n.Pos }
func (n *CompFor) Position() Pos     { return n.Pos }
func (n *ListComp) Position() Pos    { return n.Pos }
func (n *Conditional) Position() Pos { return n.Pos }

func (*FunctionDef) stmtNode() {}
func (*ClassDef) stmtNode()    {}
func (*Return) stmtNode()      {}
func (*Assign) stmtNode()      {}
func (*AugAssign) stmtNode()   {}
func (*ExprStmt) stmtNode()    {}
func (*If) stmtNode()          {}
func (*While) stmtNode()       {}
func (*For) stmtNode()         {}
func (*Break) stmtNode()       {}
func (*Continue) stmtNode()    {}
func (*Pass) stmtNode()        {}
func (*Raise) stmtNode()       {}
func (*Try) stmtNode()         {}
func (*With) stmtNode()        {}
func (*Import) stmtNode()      {}
func (*ImportFrom) stmtNode()  {}
func (*Global) stmtNode()      {}
func (*Nonlocal) stmtNode()    {}

func (*Name) exprNode()        {}
func (*StringLit) exprNode()   {}
func (*FString) exprNode()     {}
func (*NumberLit) exprNode()   {}
func (*BoolLit) exprNode()     {}
func (*NoneLit) exprNode()     {}
func (*Call) exprNode()        {}
func (*Attribute) exprNode()   {}
func (*Subscript) exprNode()   {}
func (*Slice) exprNode()       {}
func (*BinOp) exprNode()       {}
func (*UnaryOp) exprNode()     {}
func (*BoolOp) exprNode()      {}
func (*Compare) exprNode()     {}
func (*ListLit) exprNode()     {}
func (*TupleLit) exprNode()    {}
func (*DictLit) exprNode()     {}
func (*Lambda) exprNode()      {}
func (*Yield) exprNode()       {}
func (*Starred) exprNode()     {}
func (*ListComp) exprNode()    {}
func (*Conditional) exprNode() {}
