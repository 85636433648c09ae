package catalog

import (
	"fmt"

	"cuelang.org/go/cue/token"
)

// Validate checks rules that span entries. It returns every problem found,
// in catalog order, rather than stopping at the first.
func Validate(c *Catalog) []error {
	var errs []error

	periods := make(map[int64]bool)
	for _, p := range c.Periods {
		if periods[p.ID] {
			errs = append(errs, &CompileError{
				Code:    ErrCodeDuplicateID,
				Field:   "periods",
				Message: fmt.Sprintf("duplicate period id %d", p.ID),
				Pos:     c.pos("period", p.ID),
			})
		}
		periods[p.ID] = true
	}

	ids := make(map[int64]bool)
	var platinum []int64
	for _, d := range c.Definitions {
		if ids[d.ID] {
			errs = append(errs, &CompileError{
				Code:    ErrCodeDuplicateID,
				Field:   "achievements",
				Message: fmt.Sprintf("duplicate achievement id %d", d.ID),
				Pos:     c.pos("achievement", d.ID),
			})
		}
		ids[d.ID] = true

		if err := d.Validate(); err != nil {
			errs = append(errs, &CompileError{
				Code:    ErrCodeInvalidDefinition,
				Field:   "achievements",
				Message: err.Error(),
				Pos:     c.pos("achievement", d.ID),
			})
		}
		if d.Active && d.IsPlatinum() {
			platinum = append(platinum, d.ID)
		}
	}

	if len(platinum) > 1 {
		errs = append(errs, &CompileError{
			Code:    ErrCodeDuplicatePlatinum,
			Field:   "achievements",
			Message: fmt.Sprintf("only one active platinum achievement is allowed, found %v", platinum),
			Pos:     c.pos("achievement", platinum[1]),
		})
	}

	return errs
}

func (c *Catalog) pos(kind string, id int64) token.Pos {
	if v, ok := c.positions[fmt.Sprintf("%s:%d", kind, id)]; ok {
		return v.Pos()
	}
	return token.NoPos
}
