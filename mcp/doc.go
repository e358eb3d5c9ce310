// Package mcp wraps the Model Context Protocol SDK: a client session to a
// tool server process, and a stdio server that exposes local tools.
package mcp
