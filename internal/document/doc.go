// Package document defines the toolpath provenance model: Steps, Paths and
// Graphs, their identity, base and meta structures, and the externally tagged
// JSON envelope used on the wire.
//
// A Step is one atomic change by one actor. A Path is a DAG of Steps anchored
// to a base context, with head naming the tip of the active branch; steps
// that are not ancestors of head are dead ends. A Graph collects related
// Paths, inline or by external reference.
//
// Every meta object keeps the members it does not recognise in an ordered
// Extra bag, so documents written by newer producers round-trip unchanged.
package document
