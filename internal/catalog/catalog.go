package catalog

import (
	"cmp"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/achievements/internal/achievement"
)

//go:embed schema.cue
var schemaSource []byte

// Catalog is the decoded content of one or more catalog files.
// Periods and Definitions are ordered by id.
type Catalog struct {
	Periods     []achievement.Period
	Definitions []achievement.Definition

	// positions maps "period:<id>" and "achievement:<id>" to the source
	// position of the entry, for validation messages.
	positions map[string]cue.Value
}

type rawPeriod struct {
	ID     int64  `json:"id"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Active bool   `json:"active"`
}

type rawAchievement struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Active       bool    `json:"active"`
	Level        string  `json:"level"`
	Period       string  `json:"period"`
	Unit         string  `json:"unit"`
	Needed       float64 `json:"needed"`
	Progress     bool    `json:"progress"`
	WorkoutTypes struct {
		Condition string  `json:"condition"`
		IDs       []int64 `json:"ids"`
	} `json:"workoutTypes"`
	Frequency *struct {
		Every string `json:"every"`
	} `json:"frequency,omitempty"`
}

// Load reads a catalog from a .cue file or from every .cue file of a
// directory. The result is validated; see Validate.
func Load(path string) (*Catalog, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &CompileError{Code: ErrCodeNotFound, Field: "path", Message: fmt.Sprintf("catalog not found: %s", path)}
	}
	if err != nil {
		return nil, &CompileError{Code: ErrCodeNotFound, Field: "path", Message: fmt.Sprintf("error accessing catalog: %v", err)}
	}
	if !info.IsDir() {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &CompileError{Code: ErrCodeLoadFailed, Field: "path", Message: err.Error()}
		}
		return LoadBytes(path, data)
	}

	files, err := filepath.Glob(filepath.Join(path, "*.cue"))
	if err != nil || len(files) == 0 {
		return nil, &CompileError{Code: ErrCodeNoFiles, Field: "path", Message: fmt.Sprintf("no CUE files found in %s", path)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: path})
	if len(instances) == 0 {
		return nil, &CompileError{Code: ErrCodeLoadFailed, Field: "path", Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err, ErrCodeLoadFailed)
	}
	return build(ctx, ctx.BuildInstance(inst))
}

// LoadBytes compiles catalog source. filename is used in positions only.
func LoadBytes(filename string, data []byte) (*Catalog, error) {
	ctx := cuecontext.New()
	return build(ctx, ctx.CompileBytes(data, cue.Filename(filename)))
}

func build(ctx *cue.Context, v cue.Value) (*Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err, ErrCodeBuildFailed)
	}

	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Catalog"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("catalog schema: %w", err)
	}

	v = schema.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err, ErrCodeBuildFailed)
	}

	c := &Catalog{positions: make(map[string]cue.Value)}
	if err := c.decodePeriods(v.LookupPath(cue.ParsePath("periods"))); err != nil {
		return nil, err
	}
	if err := c.decodeAchievements(v.LookupPath(cue.ParsePath("achievements"))); err != nil {
		return nil, err
	}

	slices.SortStableFunc(c.Periods, func(a, b achievement.Period) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortStableFunc(c.Definitions, func(a, b achievement.Definition) int { return cmp.Compare(a.ID, b.ID) })

	if errs := Validate(c); len(errs) > 0 {
		return nil, errs[0]
	}
	return c, nil
}

func (c *Catalog) decodePeriods(v cue.Value) error {
	if !v.Exists() {
		return nil
	}
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err, ErrCodeBuildFailed)
	}
	for iter.Next() {
		var raw rawPeriod
		if err := iter.Value().Decode(&raw); err != nil {
			return formatCUEError(err, ErrCodeBuildFailed)
		}
		start, err := parseTime(iter.Value(), "start", raw.Start)
		if err != nil {
			return err
		}
		end, err := parseTime(iter.Value(), "end", raw.End)
		if err != nil {
			return err
		}
		if end.Before(start) {
			return &CompileError{
				Code:    ErrCodeInvalidRange,
				Field:   "periods." + iter.Selector().String(),
				Message: fmt.Sprintf("period %d ends before it starts", raw.ID),
				Pos:     iter.Value().Pos(),
			}
		}
		c.Periods = append(c.Periods, achievement.Period{ID: raw.ID, StartAt: start, EndAt: end, Active: raw.Active})
		c.positions[fmt.Sprintf("period:%d", raw.ID)] = iter.Value()
	}
	return nil
}

func (c *Catalog) decodeAchievements(v cue.Value) error {
	if !v.Exists() {
		return nil
	}
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err, ErrCodeBuildFailed)
	}
	for iter.Next() {
		var raw rawAchievement
		if err := iter.Value().Decode(&raw); err != nil {
			return formatCUEError(err, ErrCodeBuildFailed)
		}
		def, err := raw.definition()
		if err != nil {
			return &CompileError{
				Code:    ErrCodeInvalidDefinition,
				Field:   "achievements." + iter.Selector().String(),
				Message: err.Error(),
				Pos:     iter.Value().Pos(),
			}
		}
		key := fmt.Sprintf("achievement:%d", def.ID)
		if _, dup := c.positions[key]; !dup {
			c.positions[key] = iter.Value()
		}
		c.Definitions = append(c.Definitions, def)
	}
	return nil
}

func (r rawAchievement) definition() (achievement.Definition, error) {
	level, err := achievement.ParseLevel(r.Level)
	if err != nil {
		return achievement.Definition{}, err
	}
	unit, err := achievement.ParseQuantityUnit(r.Unit)
	if err != nil {
		return achievement.Definition{}, err
	}
	def := achievement.Definition{
		ID:                   r.ID,
		Name:                 r.Name,
		Active:               r.Active,
		PeriodCondition:      achievement.PeriodCondition(r.Period),
		QuantityUnit:         unit,
		QuantityNeeded:       r.Needed,
		WorkoutTypeCondition: achievement.WorkoutTypeCondition(r.WorkoutTypes.Condition),
		HasProgressTracking:  r.Progress,
		Level:                level,
		WorkoutTypeIDs:       slices.Clone(r.WorkoutTypes.IDs),
	}
	if r.Frequency != nil {
		def.Frequency = achievement.Frequency(r.Frequency.Every)
		def.FrequencyCondition = achievement.Every
	}
	return def, nil
}

// Definition returns the definition with id, if the catalog has one.
func (c *Catalog) Definition(id int64) (achievement.Definition, bool) {
	for _, d := range c.Definitions {
		if d.ID == id {
			return d, true
		}
	}
	return achievement.Definition{}, false
}

// Period returns the period with id, if the catalog has one.
func (c *Catalog) Period(id int64) (achievement.Period, bool) {
	for _, p := range c.Periods {
		if p.ID == id {
			return p, true
		}
	}
	return achievement.Period{}, false
}

func parseTime(entry cue.Value, field, s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, &CompileError{
			Code:    ErrCodeInvalidTime,
			Field:   field,
			Message: fmt.Sprintf("%q is not an RFC 3339 timestamp", s),
			Pos:     entry.LookupPath(cue.MakePath(cue.Str(field))).Pos(),
		}
	}
	return t.UTC(), nil
}
