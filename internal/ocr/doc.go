// Package ocr defines the OCR engine capability consumed by the recognition
// stage. Engines report progress through a callback and return one result per
// image; concrete engines live in subpackages and register themselves by name.
package ocr
