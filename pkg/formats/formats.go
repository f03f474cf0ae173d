// Package formats reads and writes the files the converter touches: NumPy
// .npz archives holding body models and motion capture, and PC2 point caches.
package formats
