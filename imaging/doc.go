// Package imaging turns image files into fixed-size, normalised float
// tensors ready for feature extraction.
//
// PNG, JPEG, GIF (first frame) and BMP are recognised by extension. Every
// image is resampled bilinearly to Size×Size and laid out channel-major
// (R plane, G plane, B plane), each value normalised as
// (v/255 - mean[c]) / std[c].
package imaging
