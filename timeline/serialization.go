package timeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"

	"github.com/Dani-Luk/NN-XOR/nn"
)

const (
	FormatVersion = "1.0"
	MaxNameLength = 50
)

// SupportedVersions lists the file versions Load accepts
var SupportedVersions = []string{FormatVersion}

// ModelFile is the persisted form of a timeline. Only the turning points are
// stored; the per-step arrays are regenerated on load.
type ModelFile struct {
	Version       string              `json:"version"`
	TurningPoints []SavedTurningPoint `json:"TP list"`
}

// SavedTurningPoint is one turning point as written to disk
type SavedTurningPoint struct {
	Index         int                                  `json:"index"`
	Seed          int                                  `json:"seedTP"`
	BatchSize     int                                  `json:"batch_size"`
	EpochSize     int                                  `json:"epoch_size"`
	CyclesPerStep int                                  `json:"cyclesPerOneStepFwdOfEpoch"`
	LearningRate  float64                              `json:"learning_rate"`
	MinRange      int                                  `json:"minRange"`
	MaxRange      int                                  `json:"maxRange"`
	YParam        [nn.NumClasses][1]int                `json:"yParam"`
	XPercents     [nn.NumClasses]int                   `json:"xPercents"`
	W1            nn.HiddenWeights                     `json:"w1"`
	W1Lock        [nn.NumInputs + 1][nn.NumHidden]int  `json:"w1_lock"`
	Activation1   string                               `json:"activation1"`
	W2            nn.OutputWeights                     `json:"w2"`
	W2Lock        [nn.NumHidden + 1][nn.NumOutputs]int `json:"w2_lock"`
	Activation2   string                               `json:"activation2"`
	Loss          string                               `json:"loss"`
	SeedShift     int                                  `json:"seedShift,omitempty"`
	SkipSteps     int                                  `json:"skipSteps,omitempty"`
}

func saveTurningPoint(tp *TurningPoint) SavedTurningPoint {
	s := SavedTurningPoint{
		Index:         tp.Index,
		Seed:          tp.Seed,
		BatchSize:     tp.BatchSize,
		EpochSize:     tp.EpochSize,
		CyclesPerStep: tp.CyclesPerStep,
		LearningRate:  tp.LearningRate,
		MinRange:      tp.ClipMin,
		MaxRange:      tp.ClipMax,
		XPercents:     tp.Percents,
		W1:            tp.W1,
		Activation1:   tp.Hidden,
		W2:            tp.W2,
		Activation2:   tp.Output,
		Loss:          tp.Loss,
		SeedShift:     tp.SeedShift,
		SkipSteps:     tp.SkipSteps,
	}
	for i, y := range tp.Labels {
		s.YParam[i][0] = y
	}
	for i := range tp.W1Lock {
		for j, l := range tp.W1Lock[i] {
			s.W1Lock[i][j] = b2i(l)
		}
	}
	for i := range tp.W2Lock {
		for j, l := range tp.W2Lock[i] {
			s.W2Lock[i][j] = b2i(l)
		}
	}
	return s
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Save writes the turning point list as indented JSON
func (c *Controller) Save(w io.Writer) error {
	c.mu.RLock()
	file := ModelFile{Version: FormatVersion, TurningPoints: make([]SavedTurningPoint, len(c.tps))}
	for i := range c.tps {
		file.TurningPoints[i] = saveTurningPoint(&c.tps[i])
	}
	c.mu.RUnlock()

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	return nil
}

// SaveToString returns the JSON form of the timeline
func (c *Controller) SaveToString() (string, error) {
	var buf bytes.Buffer
	if err := c.Save(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SaveStatus is the outcome of SaveFile
type SaveStatus int

const (
	SaveOK SaveStatus = iota
	SaveDeclinedNameTooLong
	SaveFailed
)

// SaveResult reports what SaveFile did. Name is the display name afterwards.
type SaveResult struct {
	Status SaveStatus
	Name   string
	Err    error
}

// SaveFile writes the timeline to path and takes the file's base name as the
// display name. A base name longer than MaxNameLength is declined: nothing
// is written and the display name becomes the truncated base name.
func (c *Controller) SaveFile(path string) SaveResult {
	name := baseName(path)
	if r := []rune(name); len(r) > MaxNameLength {
		name = string(r[:MaxNameLength])
		c.SetName(name)
		return SaveResult{
			Status: SaveDeclinedNameTooLong,
			Name:   name,
			Err:    fmt.Errorf("%w: %q exceeds %d characters", ErrNameTooLong, baseName(path), MaxNameLength),
		}
	}

	data, err := c.SaveToString()
	if err == nil {
		err = os.WriteFile(path, []byte(data), 0644)
	}
	if err != nil {
		return SaveResult{Status: SaveFailed, Name: c.Name(), Err: fmt.Errorf("failed to write file: %w", err)}
	}
	c.SetName(name)
	return SaveResult{Status: SaveOK, Name: name}
}

// baseName strips the directory and the last extension
func baseName(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

// Load rebuilds a timeline by replaying each persisted turning point. On
// error no controller is returned; the error is a *LoadError.
func Load(r io.Reader, opts Options) (*Controller, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, loadErr(ErrInvalidPersistedFormat, "", err)
	}

	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, loadErr(ErrInvalidPersistedFormat, "", err)
	}

	var version string
	if raw, ok := root["version"]; !ok {
		return nil, loadErr(ErrUnsupportedVersion, "version", fmt.Errorf("missing"))
	} else if err := json.Unmarshal(raw, &version); err != nil {
		return nil, loadErr(ErrUnsupportedVersion, "version", err)
	}
	if !slices.Contains(SupportedVersions, version) {
		return nil, loadErr(ErrUnsupportedVersion, "version", fmt.Errorf("%q", version))
	}

	var list []json.RawMessage
	raw, ok := root["TP list"]
	if !ok {
		return nil, loadErr(ErrInvalidPersistedFormat, "TP list", fmt.Errorf("missing"))
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, loadErr(ErrCorruptFieldValue, "TP list", err)
	}
	if len(list) == 0 {
		return nil, loadErr(ErrCorruptFieldValue, "TP list", fmt.Errorf("no turning points"))
	}

	tps := make([]TurningPoint, len(list))
	for i, raw := range list {
		path := fmt.Sprintf("TP list[%d]", i)
		tp, err := parseTurningPoint(raw, path, opts)
		if err != nil {
			return nil, err
		}
		tps[i] = tp
	}

	c := newController(opts)
	for i := range tps {
		tp := tps[i]
		if i == 0 {
			tp.Index = 0
		} else if tp.Index <= tps[i-1].Index || tp.Index > c.store.Len() {
			return nil, loadErr(ErrCorruptFieldValue, fmt.Sprintf("TP list[%d].index", i),
				fmt.Errorf("%d does not follow a timeline of %d steps", tp.Index, c.store.Len()))
		}
		label := fmt.Sprintf("Loading & generating ... TP: %d / %d", i+1, len(tps))
		c.fill(tp, tp.Index, len(c.tps), label)
	}
	c.pos, c.owner = 0, 0
	return c, nil
}

// LoadFromString loads a timeline from its JSON form
func LoadFromString(s string, opts Options) (*Controller, error) {
	return Load(bytes.NewReader([]byte(s)), opts)
}

// LoadFile loads a timeline from path and names it after the file
func LoadFile(path string, opts Options) (*Controller, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{File: path, Kind: ErrInvalidPersistedFormat, Err: err}
	}
	defer f.Close()

	c, err := Load(f, opts)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
		}
		return nil, err
	}
	c.name = baseName(path)
	if r := []rune(c.name); len(r) > MaxNameLength {
		c.name = string(r[:MaxNameLength])
	}
	return c, nil
}

// fieldReader decodes the fields of one persisted turning point, keeping the
// first error with its path.
type fieldReader struct {
	fields map[string]json.RawMessage
	path   string
	err    error
}

func (fr *fieldReader) fail(key string, err error) {
	if fr.err == nil {
		fr.err = loadErr(ErrCorruptFieldValue, fr.path+"."+key, err)
	}
}

func (fr *fieldReader) numbers(key string, want int) []float64 {
	raw, ok := fr.fields[key]
	if !ok {
		fr.fail(key, fmt.Errorf("missing"))
		return make([]float64, want)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		fr.fail(key, err)
		return make([]float64, want)
	}
	var out []float64
	if err := flattenNumbers(v, &out); err != nil {
		fr.fail(key, err)
		return make([]float64, want)
	}
	if len(out) != want {
		fr.fail(key, fmt.Errorf("has %d values, want %d", len(out), want))
		return make([]float64, want)
	}
	return out
}

// flattenNumbers accepts a number or arbitrarily nested arrays of numbers
func flattenNumbers(v any, out *[]float64) error {
	switch t := v.(type) {
	case float64:
		*out = append(*out, t)
	case bool:
		*out = append(*out, float64(b2i(t)))
	case []any:
		for _, e := range t {
			if err := flattenNumbers(e, out); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unexpected %T", v)
	}
	return nil
}

func (fr *fieldReader) real(key string) float64 {
	v := fr.numbers(key, 1)[0]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		fr.fail(key, fmt.Errorf("not finite"))
	}
	return v
}

func (fr *fieldReader) integer(key string) int {
	v := fr.numbers(key, 1)[0]
	if v != math.Trunc(v) {
		fr.fail(key, fmt.Errorf("%v is not an integer", v))
	}
	return int(v)
}

// count reads a non-negative integer that files may omit
func (fr *fieldReader) count(key string) int {
	if _, ok := fr.fields[key]; !ok {
		return 0
	}
	v := fr.integer(key)
	if v < 0 {
		fr.fail(key, fmt.Errorf("negative"))
	}
	return v
}

func (fr *fieldReader) integers(key string, want int) []int {
	vs := fr.numbers(key, want)
	out := make([]int, want)
	for i, v := range vs {
		if v != math.Trunc(v) {
			fr.fail(key, fmt.Errorf("%v is not an integer", v))
		}
		out[i] = int(v)
	}
	return out
}

// function resolves a function name, falling back to the first registered
// one with a warning, or failing when opts.StrictFunctions is set.
func (fr *fieldReader) function(key string, role nn.Role, opts Options) string {
	var name string
	if raw, ok := fr.fields[key]; ok {
		if err := json.Unmarshal(raw, &name); err != nil {
			fr.fail(key, err)
			return ""
		}
	}
	if nn.IsRegistered(role, name) {
		return name
	}
	var fallback string
	switch role {
	case nn.RoleHidden:
		fallback = nn.HiddenNames()[0]
	case nn.RoleOutput:
		fallback = nn.OutputNames()[0]
	default:
		fallback = nn.LossNames()[0]
	}
	if opts.StrictFunctions {
		if fr.err == nil {
			fr.err = loadErr(ErrUnknownFunctionReference, fr.path+"."+key, fmt.Errorf("%s function %q", role, name))
		}
		return fallback
	}
	opts.warnf("%s: %s function %q not defined, resetting to %s", fr.path+"."+key, role, name, fallback)
	return fallback
}

func parseTurningPoint(raw json.RawMessage, path string, opts Options) (TurningPoint, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return TurningPoint{}, loadErr(ErrCorruptFieldValue, path, err)
	}
	fr := &fieldReader{fields: fields, path: path}

	tp := TurningPoint{
		Index:         fr.integer("index"),
		Seed:          fr.integer("seedTP"),
		BatchSize:     fr.integer("batch_size"),
		EpochSize:     fr.integer("epoch_size"),
		CyclesPerStep: fr.integer("cyclesPerOneStepFwdOfEpoch"),
		LearningRate:  fr.real("learning_rate"),
		ClipMin:       fr.integer("minRange"),
		ClipMax:       fr.integer("maxRange"),
		SeedShift:     fr.count("seedShift"),
		SkipSteps:     fr.count("skipSteps"),
	}
	copy(tp.Labels[:], fr.integers("yParam", nn.NumClasses))
	copy(tp.Percents[:], fr.integers("xPercents", nn.NumClasses))

	w1 := fr.numbers("w1", (nn.NumInputs+1)*nn.NumHidden)
	w1Lock := fr.integers("w1_lock", (nn.NumInputs+1)*nn.NumHidden)
	for i := range tp.W1 {
		for j := range tp.W1[i] {
			tp.W1[i][j] = w1[i*nn.NumHidden+j]
			tp.W1Lock[i][j] = w1Lock[i*nn.NumHidden+j] != 0
		}
	}
	w2 := fr.numbers("w2", (nn.NumHidden+1)*nn.NumOutputs)
	w2Lock := fr.integers("w2_lock", (nn.NumHidden+1)*nn.NumOutputs)
	for i := range tp.W2 {
		for j := range tp.W2[i] {
			tp.W2[i][j] = w2[i*nn.NumOutputs+j]
			tp.W2Lock[i][j] = w2Lock[i*nn.NumOutputs+j] != 0
		}
	}
	tp.Hidden = fr.function("activation1", nn.RoleHidden, opts)
	tp.Output = fr.function("activation2", nn.RoleOutput, opts)
	tp.Loss = fr.function("loss", nn.RoleLoss, opts)

	switch {
	case fr.err != nil:
	case tp.Index < 0:
		fr.fail("index", fmt.Errorf("negative"))
	case tp.BatchSize < 1:
		fr.fail("batch_size", fmt.Errorf("must be positive"))
	case tp.EpochSize < 1:
		fr.fail("epoch_size", fmt.Errorf("must be positive"))
	case tp.CyclesPerStep < 1:
		fr.fail("cyclesPerOneStepFwdOfEpoch", fmt.Errorf("must be positive"))
	case tp.ClipMin > tp.ClipMax:
		fr.fail("minRange", fmt.Errorf("%d exceeds maxRange %d", tp.ClipMin, tp.ClipMax))
	}
	if fr.err == nil {
		sum := 0
		for _, p := range tp.Percents {
			if p < 0 {
				fr.fail("xPercents", fmt.Errorf("negative percentage %d", p))
			}
			sum += p
		}
		if sum != 100 {
			fr.fail("xPercents", fmt.Errorf("sum to %d, want 100", sum))
		}
		for _, y := range tp.Labels {
			if y != 0 && y != 1 {
				fr.fail("yParam", fmt.Errorf("label %d is not 0 or 1", y))
			}
		}
	}
	if fr.err != nil {
		return TurningPoint{}, fr.err
	}

	tp.MarkEdited()
	tp.Recompute()
	return tp, nil
}
