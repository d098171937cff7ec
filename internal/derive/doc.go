// Package derive builds toolpath documents from version control history.
//
// A single branch becomes a Path with one Step per commit; several branches
// become a Graph with one inline Path each.
package derive
