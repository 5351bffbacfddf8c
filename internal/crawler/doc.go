// Package crawler implements the lead crawling engine: URL normalization,
// the politeness-aware fetch layer, page extraction, contact resolution, the
// lead store adapter and the frontier that drives them in local, producer or
// worker mode.
package crawler
