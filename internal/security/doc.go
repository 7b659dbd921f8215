// Package security confines lockbox output files to an output directory.
//
// OutputDir wraps os.Root, so a file name can never resolve outside the
// directory even through "..", absolute paths or symlinks. Writes go to a
// temporary file first and are renamed into place only once complete, so a
// failed encrypt or decrypt never leaves a partial output behind.
package security
