package domain

type Accelerator string

const (
	AccelNone         Accelerator = "none"
	AccelCUDA         Accelerator = "cuda"
	AccelVideoToolbox Accelerator = "videotoolbox"
	AccelVAAPI        Accelerator = "vaapi"
	AccelQSV          Accelerator = "qsv"
)

func (a Accelerator) IsHardware() bool {
	return a != AccelNone && a != ""
}

// HWAccelConfig is the encoder selection for one accelerator and codec.
type HWAccelConfig struct {
	Accelerator Accelerator
	Codec       VideoCodec
	DecodeFlags []string
	EncodeFlags []string
	Encoder     string
	ScaleFilter string
}
