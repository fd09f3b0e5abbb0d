package vision

import (
	"fmt"
	"image"
	"strconv"
	"time"

	"gocv.io/x/gocv"

	"sentinel-worker-go/internal/models"
	"sentinel-worker-go/internal/services/device"
)

// minBoxFraction drops contours smaller than this share of the frame area
const minBoxFraction = 0.001

// Ops implements device.ImageOps with OpenCV
type Ops struct {
	blur image.Point
}

var _ device.ImageOps = (*Ops)(nil)

func NewOps() *Ops {
	return &Ops{blur: image.Pt(5, 5)}
}

func matFromFrame(f *models.Frame) (gocv.Mat, error) {
	if !f.Valid() {
		return gocv.Mat{}, fmt.Errorf("invalid frame %dx%d (%d bytes)", f.Width, f.Height, len(f.Data))
	}
	mat, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Data)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to create Mat from frame data: %w", err)
	}
	return mat, nil
}

func (o *Ops) gray(f *models.Frame) (gocv.Mat, error) {
	src, err := matFromFrame(f)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer src.Close()

	g := gocv.NewMat()
	gocv.CvtColor(src, &g, gocv.ColorBGRToGray)
	blurred := gocv.NewMat()
	gocv.GaussianBlur(g, &blurred, o.blur, 0, 0, gocv.BorderDefault)
	g.Close()
	return blurred, nil
}

// ChangeRate returns the percentage of pixels whose grey level moved by more
// than pixelThreshold, plus bounding boxes of the changed regions.
func (o *Ops) ChangeRate(prev, cur *models.Frame, pixelThreshold int) (device.Diff, error) {
	if !prev.SameGeometry(cur) {
		return device.Diff{}, fmt.Errorf("geometry mismatch %dx%d vs %dx%d", prev.Width, prev.Height, cur.Width, cur.Height)
	}
	a, err := o.gray(prev)
	if err != nil {
		return device.Diff{}, err
	}
	defer a.Close()
	b, err := o.gray(cur)
	if err != nil {
		return device.Diff{}, err
	}
	defer b.Close()

	delta := gocv.NewMat()
	defer delta.Close()
	gocv.AbsDiff(a, b, &delta)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(delta, &mask, float32(pixelThreshold), 255, gocv.ThresholdBinary)

	total := mask.Rows() * mask.Cols()
	changed := gocv.CountNonZero(mask)
	diff := device.Diff{Percent: 100 * float64(changed) / float64(total)}
	if changed == 0 {
		return diff, nil
	}

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(5, 5))
	defer kernel.Close()
	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(mask, &dilated, kernel)

	contours := gocv.FindContours(dilated, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	minArea := minBoxFraction * float64(total)
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		if gocv.ContourArea(c) < minArea {
			continue
		}
		diff.Boxes = append(diff.Boxes, gocv.BoundingRect(c))
	}
	return diff, nil
}

// Annotate returns a copy of frame with the status overlay drawn on it
func (o *Ops) Annotate(frame *models.Frame, ov device.Overlay) (*models.Frame, error) {
	src, err := matFromFrame(frame)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	mat := src.Clone()
	defer mat.Close()

	for _, box := range ov.Boxes {
		gocv.Rectangle(&mat, box, amber, 2)
	}

	scale := ov.FontScale
	y := 10 + int(30*scale)
	y += drawLabel(&mat, ov.Timestamp.Format("2006-01-02 15:04:05.000"), 10, y, white, scale)
	y += drawLabel(&mat, ov.DeviceName, 10, y, white, scale)
	drawLabel(&mat, "change "+strconv.FormatFloat(ov.ChangeRate, 'f', 2, 64)+"%", 10, y, white, scale)

	status, statusColor := "idle", green
	if ov.Motion {
		status, statusColor = "MOTION", red
	}
	if ov.Recording {
		status += fmt.Sprintf("  REC %d  cooldown %d", ov.FrameCount, ov.Cooldown)
		statusColor = red
	}
	drawLabel(&mat, status, 10, mat.Rows()-12, statusColor, scale)

	out := &models.Frame{
		Data:      mat.ToBytes(),
		Width:     frame.Width,
		Height:    frame.Height,
		Timestamp: frame.Timestamp,
	}
	return out, nil
}

// EncodeJPEG compresses frame at the given quality
func (o *Ops) EncodeJPEG(frame *models.Frame, quality int) ([]byte, error) {
	mat, err := matFromFrame(frame)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	defer buf.Close()

	b := buf.GetBytes()
	jpeg := make([]byte, len(b))
	copy(jpeg, b)
	return jpeg, nil
}

// Placeholder renders a grey frame with a message and the time
func (o *Ops) Placeholder(width, height int, text string, ts time.Time) *models.Frame {
	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	defer mat.Close()
	mat.SetTo(gocv.Scalar{Val1: 64, Val2: 64, Val3: 64, Val4: 0})

	scale := float64(width) / 640
	if scale < 0.4 {
		scale = 0.4
	}
	gocv.PutText(&mat, text, image.Pt(20, height/2), gocv.FontHersheySimplex, scale, white, 2)
	gocv.PutText(&mat, ts.Format("2006-01-02 15:04:05"), image.Pt(20, height/2+int(40*scale)),
		gocv.FontHersheySimplex, scale*0.8, white, 1)

	return &models.Frame{
		Data:        mat.ToBytes(),
		Width:       width,
		Height:      height,
		Timestamp:   ts,
		Placeholder: true,
	}
}
