package shaders

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/gogpu/naga"
)

var (
	ErrUnknownModule   = errors.New("unknown shader module")
	ErrUnbalancedIfdef = errors.New("unbalanced #ifdef")
	ErrImportCycle     = errors.New("shader import cycle")
)

// Module returns the raw source of an embedded module, e.g. "triplanar".
func Module(name string) (string, error) {
	data, err := fs.ReadFile(sources, name+".wgsl")
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownModule, name)
	}
	return string(data), nil
}

// Compose resolves #import lines and #ifdef/#ifndef/#else/#endif blocks of an
// embedded module. Each module is inlined at most once.
func Compose(name string, defs []string) (string, error) {
	defined := make(map[string]bool, len(defs))
	for _, d := range defs {
		defined[d] = true
	}
	c := &composer{defs: defined, included: map[string]bool{}, stack: map[string]bool{}}
	var out strings.Builder
	if err := c.compose(name, &out); err != nil {
		return "", err
	}
	return out.String(), nil
}

// Stage composes the stage a material names by its shader path.
func Stage(path string, defs []string) (string, error) {
	name, ok := stagePaths[path]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownModule, path)
	}
	return Compose(name, defs)
}

type composer struct {
	defs     map[string]bool
	included map[string]bool
	stack    map[string]bool
}

type frame struct {
	parentActive bool
	active       bool
	sawElse      bool
}

func (c *composer) compose(name string, out *strings.Builder) error {
	if c.stack[name] {
		return fmt.Errorf("%w: %s", ErrImportCycle, name)
	}
	if c.included[name] {
		return nil
	}
	src, err := Module(name)
	if err != nil {
		return err
	}
	c.stack[name] = true
	defer delete(c.stack, name)
	c.included[name] = true

	var frames []frame
	active := func() bool {
		if len(frames) == 0 {
			return true
		}
		return frames[len(frames)-1].active
	}

	sc := bufio.NewScanner(strings.NewReader(src))
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		directive := strings.Fields(strings.TrimSpace(text))
		if len(directive) > 0 && strings.HasPrefix(directive[0], "#") {
			switch directive[0] {
			case "#ifdef", "#ifndef":
				if len(directive) < 2 {
					return fmt.Errorf("%s:%d: %s without a name", name, line, directive[0])
				}
				cond := c.defs[directive[1]]
				if directive[0] == "#ifndef" {
					cond = !cond
				}
				parent := active()
				frames = append(frames, frame{parentActive: parent, active: parent && cond})
				continue
			case "#else":
				if len(frames) == 0 {
					return fmt.Errorf("%w: %s:%d: #else without #ifdef", ErrUnbalancedIfdef, name, line)
				}
				top := &frames[len(frames)-1]
				if top.sawElse {
					return fmt.Errorf("%w: %s:%d: duplicate #else", ErrUnbalancedIfdef, name, line)
				}
				top.sawElse = true
				top.active = top.parentActive && !top.active
				continue
			case "#endif":
				if len(frames) == 0 {
					return fmt.Errorf("%w: %s:%d: #endif without #ifdef", ErrUnbalancedIfdef, name, line)
				}
				frames = frames[:len(frames)-1]
				continue
			case "#import":
				if !active() {
					continue
				}
				if len(directive) < 2 {
					return fmt.Errorf("%s:%d: #import without a module", name, line)
				}
				if err := c.compose(directive[1], out); err != nil {
					return err
				}
				continue
			}
		}
		if active() {
			out.WriteString(text)
			out.WriteByte('\n')
		}
	}
	if len(frames) != 0 {
		return fmt.Errorf("%w: %s: %d block(s) left open", ErrUnbalancedIfdef, name, len(frames))
	}
	return sc.Err()
}

// Check parses composed WGSL.
func Check(source string) error {
	if _, err := naga.Parse(source); err != nil {
		return err
	}
	return nil
}

// Validate parses, lowers and validates composed WGSL.
func Validate(source string) error {
	ast, err := naga.Parse(source)
	if err != nil {
		return err
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return fmt.Errorf("lowering error: %w", err)
	}
	verrs, err := naga.Validate(module)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if len(verrs) > 0 {
		return fmt.Errorf("validation failed: %w", &verrs[0])
	}
	return nil
}

// Variant is a composed vertex/fragment pair for one set of shader defs.
type Variant struct {
	Defs     []string
	Vertex   string
	Fragment string
}

// NewVariant composes both stages of a material for the given defs.
// Defs are sorted so equal sets compose identically.
func NewVariant(vertexPath, fragmentPath string, vertexDefs, fragmentDefs []string) (*Variant, error) {
	vdefs := sortedDefs(vertexDefs)
	fdefs := sortedDefs(fragmentDefs)
	vs, err := Stage(vertexPath, vdefs)
	if err != nil {
		return nil, fmt.Errorf("vertex stage: %w", err)
	}
	fsrc, err := Stage(fragmentPath, fdefs)
	if err != nil {
		return nil, fmt.Errorf("fragment stage: %w", err)
	}
	return &Variant{Defs: fdefs, Vertex: vs, Fragment: fsrc}, nil
}

func sortedDefs(defs []string) []string {
	out := append([]string(nil), defs...)
	sort.Strings(out)
	return out
}
