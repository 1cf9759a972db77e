// Command shelfward is the CLI for acquiring, converting, and shelving
// audiobooks: batch downloads, queue inspection, library re-sync, and
// configuration management.
package main
