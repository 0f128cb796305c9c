package main

const (
	MsgCouldNotClassify = "Could not classify this photo. Please try another picture of the dog."

	MsgInvalidImage = "The upload could not be read as an image. Supported formats: JPEG, PNG, GIF, BMP, TIFF."

	MsgBusy = "All detectors are busy. Please retry in a moment."
)
