package k8s

import (
	"sort"
	"strings"
)

// k8s Label SelectorElement like EqualityBased or SetBased
type SelectorElement interface {
	// convert to querystring expression for label
	QueryString(label string) string
}

type LabelSelector map[string]SelectorElement

// convert to string value in form of query string.
//
// Terms are sorted by label so the result is stable.
func (ls LabelSelector) QueryString() string {
	if len(ls) == 0 {
		return ""
	}

	keys := make([]string, 0, len(ls))
	for k := range ls {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	terms := make([]string, 0, len(keys))
	for _, k := range keys {
		terms = append(terms, ls[k].QueryString(k))
	}
	return strings.Join(terms, ",")
}

// see: https://kubernetes.io/docs/concepts/overview/working-with-objects/labels/#equality-based-requirement
type EqualityBased string

var _ SelectorElement = EqualityBased("")

func Eq(value string) EqualityBased {
	_, v := EqualityBased(value).destruct()
	return EqualityBased("=" + v)
}

func (eqb EqualityBased) destruct() (operator string, value string) {
	exp := string(eqb)
	switch {
	case strings.HasPrefix(exp, "=="):
		return "=", exp[2:]
	case strings.HasPrefix(exp, "="):
		return "=", exp[1:]
	case strings.HasPrefix(exp, "!="):
		return "!=", exp[2:]
	default:
		// "!foo" does not mean "!=foo".
		return "=", exp
	}
}

func (eqb EqualityBased) QueryString(label string) string {
	op, v := eqb.destruct()
	return label + op + v
}

func LabelsToSelector(ls map[string]string) LabelSelector {
	new := LabelSelector{}
	for k, v := range ls {
		new[k] = Eq(v)
	}
	return new
}
