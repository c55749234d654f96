// Package srcpos carries source positions through every compiler pass.
package srcpos

import "fmt"

// Pos is a 1-based line/column location within a single file.
type Pos struct {
	File   string
	Line   int
	Column int
}

func (p Pos) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// None is the zero Pos, used for synthesized nodes that have no source origin.
var None = Pos{}
