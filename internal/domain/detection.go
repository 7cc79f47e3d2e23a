package domain

import "image"

// RawDetection is one row as returned by the detection capability, before normalization.
// Coordinates follow the YOLO xyxy layout in source-image pixels.
type RawDetection struct {
	Name       string  `json:"name"`
	Class      int     `json:"class"`
	Confidence float64 `json:"confidence"`
	XMin       float64 `json:"xmin"`
	YMin       float64 `json:"ymin"`
	XMax       float64 `json:"xmax"`
	YMax       float64 `json:"ymax"`
}

// Box is a bounding box in integer pixel coordinates: [x_min, y_min, x_max, y_max].
// It serializes as a four element JSON array.
type Box [4]int

// NewBox builds a box from its corner coordinates
func NewBox(xMin, yMin, xMax, yMax int) Box {
	return Box{xMin, yMin, xMax, yMax}
}

func (b Box) XMin() int { return b[0] }
func (b Box) YMin() int { return b[1] }
func (b Box) XMax() int { return b[2] }
func (b Box) YMax() int { return b[3] }

// Valid reports whether the box has positive width and height
func (b Box) Valid() bool {
	return b[0] < b[2] && b[1] < b[3]
}

// Rect converts the box to an image.Rectangle
func (b Box) Rect() image.Rectangle {
	return image.Rect(b[0], b[1], b[2], b[3])
}

// Detection is a normalized detection: one located object of one species
type Detection struct {
	Species    string  `json:"species"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}
