// Package codec converts between on-disk image files, standard Go image
// types, and the normalized float representation used by the dehazing
// pipeline.
//
// # Normalization
//
// Pipeline images hold float64 samples in [0, 1]. FromImage divides 8-bit
// samples by 255; ToImage multiplies by 255 and rounds. A round trip through
// both is lossless for 8-bit sources.
//
// # Formats
//
// Load and Decode accept PNG, JPEG, GIF, BMP, and TIFF. Save and SaveGray
// always write PNG, which keeps intermediate transmission maps exact.
package codec
