package camera

import (
	"math"

	"github.com/pkg/errors"

	"github.com/bestman-robotics/bestman/utils"
)

// Intrinsics holds the parameters necessary to do a perspective projection of a 3D scene to the 2D plane.
// Pixel coordinates follow the optical convention: x to the right, y down, z along the optical axis.
type Intrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// NewIntrinsicsFromFOV derives square pixel intrinsics from an image size and a vertical field of
// view in degrees.
func NewIntrinsicsFromFOV(width, height int, fov float64) (*Intrinsics, error) {
	if fov <= 0 || fov >= 180 {
		return nil, errors.Errorf("invalid field of view %v", fov)
	}
	focal := float64(height) / 2 / math.Tan(utils.DegToRad(fov)/2)
	params := &Intrinsics{
		Width:  width,
		Height: height,
		Fx:     focal,
		Fy:     focal,
		Ppx:    float64(width) / 2,
		Ppy:    float64(height) / 2,
	}
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	return params, nil
}

// CheckValid checks if the fields for Intrinsics have valid inputs.
func (params *Intrinsics) CheckValid() error {
	if params == nil {
		return errors.New("intrinsics do not exist")
	}
	if params.Width <= 0 || params.Height <= 0 {
		return errors.Errorf("invalid size (%#v, %#v)", params.Width, params.Height)
	}
	if params.Fx <= 0 {
		return errors.Errorf("invalid focal length Fx = %#v", params.Fx)
	}
	if params.Fy <= 0 {
		return errors.Errorf("invalid focal length Fy = %#v", params.Fy)
	}
	if params.Ppx < 0 {
		return errors.Errorf("invalid principal X point Ppx = %#v", params.Ppx)
	}
	if params.Ppy < 0 {
		return errors.Errorf("invalid principal Y point Ppy = %#v", params.Ppy)
	}
	return nil
}

// PixelToPoint transforms a pixel with depth to a 3D point in the optical frame.
func (params *Intrinsics) PixelToPoint(x, y, z float64) (float64, float64, float64) {
	if params == nil {
		return 0, 0, 0
	}
	xOverZ := (x - params.Ppx) / params.Fx
	yOverZ := (y - params.Ppy) / params.Fy
	return xOverZ * z, yOverZ * z, z
}

// PointToPixel projects a 3D point in the optical frame to a pixel in the image plane.
func (params *Intrinsics) PointToPixel(x, y, z float64) (float64, float64) {
	if z != 0. {
		xPx := math.Round((x/z)*params.Fx + params.Ppx)
		yPx := math.Round((y/z)*params.Fy + params.Ppy)
		return xPx, yPx
	}
	// negative coordinates fall outside every image
	return -1.0, -1.0
}
