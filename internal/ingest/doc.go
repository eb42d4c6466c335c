// Package ingest opens the source PDF and produces the page store: one
// page per physical page with its raw text and a rendered PNG image.
//
// Text comes from the PDF text layer and, when OCR is enabled, from
// tesseract run on the rendered page. Images are rendered with pdftoppm.
// Per-page failures degrade the page instead of failing the run.
package ingest
