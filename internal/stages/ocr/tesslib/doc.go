// Package tesslib runs OCR in-process through libtesseract via gosseract.
//
// The real engine is compiled only with the "gosseract" build tag because it
// links against libtesseract with cgo; without the tag New returns an engine
// whose Check reports that support was not built in.
package tesslib
