// Package archive creates tar archives through the external tar executable.
package archive
