// Package query validates report listing queries before they reach storage.
package query
