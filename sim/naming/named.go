// Package naming defines the hierarchical naming convention used by every
// named element of a device, such as "Dev.RxFIFO" or "Host[1]".
package naming

import (
	"strconv"
	"strings"
)

// Named describes an object that has a name.
type Named interface {
	// Name returns the name of the object.
	Name() string
}

// NamedBase is a base implementation of Named.
type NamedBase struct {
	name string
}

// Name returns the name.
func (b NamedBase) Name() string {
	return b.name
}

// MakeNamedBase creates a new NamedBase. The name must be valid.
func MakeNamedBase(name string) NamedBase {
	NameMustBeValid(name)

	return NamedBase{name: name}
}

// NameMustBeValid panics if the name does not follow the naming convention.
//  1. Names are hierarchical, tokens separated by dots. "A.B" is valid,
//     "A.B." is not.
//  2. Tokens must not be empty.
//  3. Tokens start with a capital letter and do not contain '_', '-' or
//     quotes.
//  4. Elements in a series use square-bracket indices, as in "Host[2]".
func NameMustBeValid(name string) {
	for _, token := range strings.Split(name, ".") {
		if err := tokenError(token); err != "" {
			panic("name " + name + " is not valid: " + err)
		}
	}
}

func tokenError(token string) string {
	elem, indices, ok := strings.Cut(token, "[")
	if elem == "" {
		return "name element must not be empty"
	}

	if strings.ContainsAny(elem, "_-\"'] ") {
		return "name element must not contain _, -, quotes or spaces"
	}

	if elem[0] < 'A' || elem[0] > 'Z' {
		return "name element must start with a capital letter"
	}

	if !ok {
		return ""
	}

	return indexError("[" + indices)
}

func indexError(indices string) string {
	for indices != "" {
		if indices[0] != '[' {
			return "index must be enclosed in brackets"
		}

		end := strings.IndexByte(indices, ']')
		if end < 0 {
			return "bracket must match"
		}

		if _, err := strconv.Atoi(indices[1:end]); err != nil {
			return "index must be an integer"
		}

		indices = indices[end+1:]
	}

	return ""
}

// BuildName builds a name from a parent name and an element name.
func BuildName(parentName, elementName string) string {
	if parentName == "" {
		return elementName
	}

	return parentName + "." + elementName
}

// BuildNameWithIndex builds a name from a parent name, an element name and an
// index.
func BuildNameWithIndex(parentName, elementName string, index int) string {
	return BuildName(parentName, elementName+"["+strconv.Itoa(index)+"]")
}
