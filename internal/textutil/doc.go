// Package textutil provides text helpers for turning free-text topics into
// filesystem-safe object names and display titles.
package textutil
