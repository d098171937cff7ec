package store

import (
	"errors"
	"strconv"
	"strings"
)

var ErrNotReadOnly = errors.New("only SELECT and WITH queries may be run against the archive")

// CheckReadOnly rejects statements that could modify the archive.
func CheckReadOnly(query string) error {
	q := strings.TrimSpace(query)
	q = strings.TrimSuffix(q, ";")
	if strings.Contains(q, ";") {
		return ErrNotReadOnly
	}
	fields := strings.Fields(q)
	if len(fields) == 0 {
		return ErrNotReadOnly
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH":
	default:
		return ErrNotReadOnly
	}
	for _, f := range fields[1:] {
		if writeKeywords[strings.ToUpper(strings.Trim(f, "(),"))] {
			return ErrNotReadOnly
		}
	}
	return nil
}

var writeKeywords = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "DROP": true, "ALTER": true,
	"CREATE": true, "REPLACE": true, "ATTACH": true, "PRAGMA": true, "TRUNCATE": true,
}

// PositionalArgs orders params keyed "1".."n" into an argument list,
// stopping at the first missing index.
func PositionalArgs(params map[string]any) []any {
	args := make([]any, 0, len(params))
	for i := 1; i <= len(params); i++ {
		val, ok := params[strconv.Itoa(i)]
		if !ok {
			break
		}
		args = append(args, val)
	}
	return args
}

var ErrNotReadOnlyCypher = errors.New("only MATCH, WITH, UNWIND, and RETURN queries may be run against the archive")

// CheckReadOnlyCypher is CheckReadOnly for graph archives.
func CheckReadOnlyCypher(query string) error {
	q := strings.TrimSuffix(strings.TrimSpace(query), ";")
	if strings.Contains(q, ";") {
		return ErrNotReadOnlyCypher
	}
	fields := strings.Fields(q)
	if len(fields) == 0 {
		return ErrNotReadOnlyCypher
	}
	switch strings.ToUpper(fields[0]) {
	case "MATCH", "OPTIONAL", "WITH", "UNWIND", "RETURN":
	default:
		return ErrNotReadOnlyCypher
	}
	for _, f := range fields[1:] {
		if cypherWriteKeywords[strings.ToUpper(strings.Trim(f, "(),{}"))] {
			return ErrNotReadOnlyCypher
		}
	}
	return nil
}

var cypherWriteKeywords = map[string]bool{
	"CREATE": true, "MERGE": true, "DELETE": true, "DETACH": true, "SET": true,
	"REMOVE": true, "DROP": true, "LOAD": true, "FOREACH": true, "CALL": true,
}
