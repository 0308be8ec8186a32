package extract

import "errors"

var (
	// ErrInputValidation is returned when content fails validation. No
	// backend call has been made.
	ErrInputValidation = errors.New("extract: input validation failed")

	// ErrBackend wraps failures of the generative backend.
	ErrBackend = errors.New("extract: backend failed")

	// ErrConversion wraps failures to turn backend output into a result.
	ErrConversion = errors.New("extract: conversion failed")

	// ErrChunkValidation is returned when a streamed chunk fails its check.
	// The stream cannot be resumed.
	ErrChunkValidation = errors.New("extract: chunk validation failed")

	// ErrDone is returned by ChunkStream.Next after the last chunk.
	ErrDone = errors.New("extract: done")
)
