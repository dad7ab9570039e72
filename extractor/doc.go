// Package extractor maps decoded images to fixed-size embeddings.
//
// Thumbnail is a pure Go descriptor that needs no model files. ONNX runs a
// frozen pretrained CNN through ONNX Runtime and selects an accelerator or
// the CPU at load time. New picks one of them from a Config.
package extractor
