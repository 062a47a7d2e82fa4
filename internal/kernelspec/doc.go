// Package kernelspec loads and validates the kernel discovery document
// (kernel.json) and describes the kernel to front-ends.
package kernelspec
