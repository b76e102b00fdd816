package shader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-anim/engine/kernel"
)

// directivePrefix starts a line the kernel expander rewrites before the WGSL is parsed.
//
//	//@anim:include <struct>
//	//@anim:group <group> <binding> <space> <var> <type | array<type>>
const directivePrefix = "//@anim:"

// kernelStruct is a struct definition kernels can pull in with an include directive.
type kernelStruct struct {
	source   string
	typeName string
}

var kernelStructs = map[string]kernelStruct{
	"spring_state": {kernel.GPUSpringStateSource, "SpringState"},
	"tween_state":  {kernel.GPUTweenStateSource, "TweenState"},
	"params":       {kernel.GPUParamsSource, "Params"},
}

// addressSpaces maps a directive address space to the var<> qualifier it generates.
var addressSpaces = map[string]string{
	"storage_uniform":    "uniform",
	"storage_read":       "storage, read",
	"storage_read_write": "storage, read_write",
}

// expandDirectives replaces include and group directives with the WGSL they stand for.
// A struct included more than once is emitted only the first time.
func expandDirectives(source string) (string, error) {
	lines := strings.Split(source, "\n")
	included := make(map[string]bool)

	var sb strings.Builder
	sb.Grow(len(source))
	for i, line := range lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), directivePrefix)
		if !ok {
			sb.WriteString(line)
			continue
		}

		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return "", fmt.Errorf("line %d: empty directive", i+1)
		}
		switch fields[0] {
		case "include":
			if len(fields) != 2 {
				return "", fmt.Errorf("line %d: include takes one struct name", i+1)
			}
			ks, ok := kernelStructs[fields[1]]
			if !ok {
				return "", fmt.Errorf("line %d: unknown struct %q", i+1, fields[1])
			}
			if !included[fields[1]] {
				included[fields[1]] = true
				sb.WriteString(strings.TrimRight(ks.source, "\n"))
			}
		case "group":
			decl, err := groupDeclaration(fields[1:])
			if err != nil {
				return "", fmt.Errorf("line %d: %w", i+1, err)
			}
			sb.WriteString(decl)
		default:
			return "", fmt.Errorf("line %d: unknown directive %q", i+1, fields[0])
		}
	}
	return sb.String(), nil
}

// groupDeclaration builds the @group/@binding variable declaration for the arguments of a group directive.
func groupDeclaration(args []string) (string, error) {
	if len(args) != 5 {
		return "", fmt.Errorf("group takes group, binding, address space, name and type; got %d arguments", len(args))
	}
	group, err := strconv.Atoi(args[0])
	if err != nil || group < 0 {
		return "", fmt.Errorf("invalid group index %q", args[0])
	}
	binding, err := strconv.Atoi(args[1])
	if err != nil || binding < 0 {
		return "", fmt.Errorf("invalid binding index %q", args[1])
	}
	space, ok := addressSpaces[args[2]]
	if !ok {
		return "", fmt.Errorf("unknown address space %q", args[2])
	}

	elem, isArray := strings.CutPrefix(args[4], "array<")
	if isArray {
		elem = strings.TrimSuffix(elem, ">")
	}
	ks, ok := kernelStructs[elem]
	if !ok {
		return "", fmt.Errorf("unknown struct %q", elem)
	}
	typeName := ks.typeName
	if isArray {
		typeName = "array<" + typeName + ">"
	}
	return fmt.Sprintf("@group(%d) @binding(%d) var<%s> %s: %s;", group, binding, space, args[3], typeName), nil
}
