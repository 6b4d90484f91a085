// Package compiler defines the contract between the bridge and a document
// engine: the World an engine reads files, fonts and time from, the
// Engine itself, and the values and documents it produces.
package compiler
