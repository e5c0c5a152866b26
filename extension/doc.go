// Package extension provides run-time registries for model architectures and
// user-defined Go types. The registries are normally populated through the
// public APIs under the root fuseomics package, therefore most applications
// do not need to import this package directly.
package extension
