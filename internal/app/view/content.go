/*
Package view projects chat state into a display tree.

This file decides how a message body is displayed. A body that ends with the image
suffix is shown as an image whose source is the body itself; anything else is text.
*/
package view

import "strings"

// ImageSuffix marks a message body as an image reference. The match is literal and
// case-sensitive.
const ImageSuffix = ".gif"

// ContentKind tells how a message body is displayed.
type ContentKind int

const (
	ContentText ContentKind = iota
	ContentImage
)

func (k ContentKind) String() string {
	switch k {
	case ContentText:
		return "text"
	case ContentImage:
		return "image"
	default:
		return "unknown"
	}
}

// Content is the displayable form of a message body.
type Content struct {
	Kind ContentKind

	// Text is set for ContentText.
	Text string

	// Src is set for ContentImage.
	Src string
}

// ClassifyBody returns the content for a message body.
func ClassifyBody(body string) Content {
	if strings.HasSuffix(body, ImageSuffix) {
		return Content{Kind: ContentImage, Src: body}
	}
	return Content{Kind: ContentText, Text: body}
}
