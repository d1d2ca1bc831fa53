// Package wql evaluates the small wallet-query-language dialect used to
// restrict credential search and proof-request restrictions: field
// equality plus $and/$or/$not/$in/$neq/$gt/$gte/$lt/$lte, applied against a
// flat string tag map. Grounded on the query shape documented for
// Hyperledger Indy/Aries wallet storage (see other_examples' Aries wallet
// command API) and on original_source's WQL restriction handling.
package wql

import (
	"fmt"
	"strconv"

	"anoncreds/internal/types"
)

// Eval reports whether tags satisfies query. query is an arbitrary decoded
// JSON object (types.WQLQuery); an empty or nil query always matches.
func Eval(query types.WQLQuery, tags map[string]string) (bool, error) {
	if len(query) == 0 {
		return true, nil
	}
	for key, value := range query {
		ok, err := evalClause(key, value, tags)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func evalClause(key string, value any, tags map[string]string) (bool, error) {
	switch key {
	case "$and":
		items, err := asQueryList(value)
		if err != nil {
			return false, fmt.Errorf("wql: $and: %w", err)
		}
		for _, sub := range items {
			ok, err := Eval(sub, tags)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case "$or":
		items, err := asQueryList(value)
		if err != nil {
			return false, fmt.Errorf("wql: $or: %w", err)
		}
		if len(items) == 0 {
			return false, nil
		}
		for _, sub := range items {
			ok, err := Eval(sub, tags)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case "$not":
		sub, ok := value.(map[string]any)
		if !ok {
			return false, fmt.Errorf("wql: $not requires an object operand")
		}
		ok2, err := Eval(sub, tags)
		if err != nil {
			return false, err
		}
		return !ok2, nil

	default:
		return evalField(key, value, tags)
	}
}

func asQueryList(value any) ([]types.WQLQuery, error) {
	raw, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("expected an array operand")
	}
	out := make([]types.WQLQuery, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected an array of objects")
		}
		out = append(out, m)
	}
	return out, nil
}

// evalField evaluates a single tag clause: either direct equality
// (value is a string) or an operator object ($neq/$gt/$gte/$lt/$lte/$in).
func evalField(field string, value any, tags map[string]string) (bool, error) {
	actual, present := tags[field]

	switch v := value.(type) {
	case string:
		return present && actual == v, nil

	case map[string]any:
		for op, operand := range v {
			ok, err := evalOperator(op, operand, actual, present)
			if err != nil {
				return false, fmt.Errorf("wql: field %q: %w", field, err)
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	default:
		return false, fmt.Errorf("wql: field %q: unsupported operand type %T", field, value)
	}
}

func evalOperator(op string, operand any, actual string, present bool) (bool, error) {
	switch op {
	case "$neq":
		s, ok := operand.(string)
		if !ok {
			return false, fmt.Errorf("$neq requires a string operand")
		}
		return !present || actual != s, nil

	case "$in":
		list, ok := operand.([]any)
		if !ok {
			return false, fmt.Errorf("$in requires an array operand")
		}
		if !present {
			return false, nil
		}
		for _, item := range list {
			if s, ok := item.(string); ok && s == actual {
				return true, nil
			}
		}
		return false, nil

	case "$gt", "$gte", "$lt", "$lte":
		s, ok := operand.(string)
		if !ok {
			return false, fmt.Errorf("%s requires a string operand", op)
		}
		if !present {
			return false, nil
		}
		cmp, ok := compare(actual, s)
		if !ok {
			return false, nil
		}
		switch op {
		case "$gt":
			return cmp > 0, nil
		case "$gte":
			return cmp >= 0, nil
		case "$lt":
			return cmp < 0, nil
		default:
			return cmp <= 0, nil
		}

	default:
		return false, fmt.Errorf("unsupported operator %q", op)
	}
}

// compare orders two tag values numerically when both parse as integers,
// falling back to lexicographic comparison (e.g. for date strings). Every
// pair of strings is comparable one way or the other, so the second result
// is always true.
func compare(a, b string) (int, bool) {
	an, aerr := strconv.ParseInt(a, 10, 64)
	bn, berr := strconv.ParseInt(b, 10, 64)
	if aerr == nil && berr == nil {
		switch {
		case an < bn:
			return -1, true
		case an > bn:
			return 1, true
		default:
			return 0, true
		}
	}
	switch {
	case a < b:
		return -1, true
	case a > b:
		return 1, true
	default:
		return 0, true
	}
}
