package model

// Frame is one decoded raster from a video, encoded as JPEG.
// Index is its temporal position, starting at 0.
type Frame struct {
	Index int
	Data  []byte
}

// ColorizedFrame is derived 1:1 from a Frame and keeps its Index.
type ColorizedFrame struct {
	Index int
	Data  []byte
}

// AudioTrack 整个文件级别的音轨引用，不做逐帧对齐
type AudioTrack struct {
	Path     string
	Duration float64 // seconds
}

// Empty reports whether the source had no audio stream.
func (a AudioTrack) Empty() bool {
	return a.Path == ""
}
