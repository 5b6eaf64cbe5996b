package ffmpeg

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	shlex "github.com/flynn/go-shlex"

	"github.com/eleven-am/transcoder/internal/domain"
)

// PipeOutput is the output target for byte-stream jobs.
const PipeOutput = "pipe:1"

// TranscodeData accumulates the argument blocks of one encoder invocation.
// Stages append to it in order; Args serializes it.
type TranscodeData struct {
	TranscodeID string
	ClientID    string
	BinaryPath  string

	GlobalArgs     []string
	InputArgs      map[int][]string
	Inputs         map[int]string
	SubtitleArgs   map[int][]string
	SubtitleInputs map[int]string
	OutputArgs     []string
	OutputFilter   []string
	OutputPath     string

	// Override replaces everything above except Inputs, SubtitleInputs and
	// OutputPath, which fill its {input}, {subtitle} and {output} tokens.
	Override string

	// Set by the output stage.
	SegmentDir   string
	StartSegment int64
	Copy         bool
	Accelerator  domain.Accelerator
}

func NewTranscodeData(job domain.Job) *TranscodeData {
	return &TranscodeData{
		TranscodeID:    job.TranscodeID,
		ClientID:       job.ClientID,
		BinaryPath:     job.BinaryPath,
		InputArgs:      make(map[int][]string),
		Inputs:         make(map[int]string),
		SubtitleArgs:   make(map[int][]string),
		SubtitleInputs: make(map[int]string),
		Override:       job.Arguments,
	}
}

func (d *TranscodeData) AddInput(index int, path string, args ...string) {
	d.Inputs[index] = path
	d.InputArgs[index] = append(d.InputArgs[index], args...)
}

func (d *TranscodeData) AddSubtitleInput(index int, path string, args ...string) {
	d.SubtitleInputs[index] = path
	d.SubtitleArgs[index] = append(d.SubtitleArgs[index], args...)
}

// SubtitleInputIndex returns the encoder's input number for the subtitle
// input stored under index, or -1.
func (d *TranscodeData) SubtitleInputIndex(index int) int {
	keys := sortedKeys(d.SubtitleInputs)
	pos := slices.Index(keys, index)
	if pos < 0 {
		return -1
	}
	return len(d.Inputs) + pos
}

// IsPipe reports whether the job writes to stdout.
func (d *TranscodeData) IsPipe() bool {
	return d.OutputPath == PipeOutput
}

// Args returns the argument vector in the order global, inputs, subtitle
// inputs, output options, filter graph, output target.
func (d *TranscodeData) Args() ([]string, error) {
	if d.Override != "" {
		return d.overrideArgs()
	}

	args := slices.Clone(d.GlobalArgs)
	for _, i := range sortedKeys(d.Inputs) {
		args = append(args, d.InputArgs[i]...)
		args = append(args, "-i", d.Inputs[i])
	}
	for _, i := range sortedKeys(d.SubtitleInputs) {
		args = append(args, d.SubtitleArgs[i]...)
		args = append(args, "-i", d.SubtitleInputs[i])
	}
	args = append(args, d.OutputArgs...)
	if len(d.OutputFilter) > 0 {
		args = append(args, "-filter_complex", strings.Join(d.OutputFilter, ";"))
	}
	if d.OutputPath == "" {
		return nil, fmt.Errorf("transcode %s: no output target", d.TranscodeID)
	}
	return append(args, d.OutputPath), nil
}

func (d *TranscodeData) overrideArgs() ([]string, error) {
	tokens, err := shlex.Split(d.Override)
	if err != nil {
		return nil, fmt.Errorf("split argument override: %w", err)
	}

	replacer := strings.NewReplacer(
		"{input}", first(d.Inputs),
		"{subtitle}", first(d.SubtitleInputs),
		"{output}", d.OutputPath,
	)
	for i, tok := range tokens {
		tokens[i] = replacer.Replace(tok)
	}
	return tokens, nil
}

// String renders the command line for logs.
func (d *TranscodeData) String() string {
	args, err := d.Args()
	if err != nil {
		return err.Error()
	}
	bin := d.BinaryPath
	if bin == "" {
		bin = "ffmpeg"
	}
	quoted := make([]string, 0, len(args)+1)
	quoted = append(quoted, bin)
	for _, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\"'[];") {
			a = `"` + strings.ReplaceAll(a, `"`, `\"`) + `"`
		}
		quoted = append(quoted, a)
	}
	return strings.Join(quoted, " ")
}

func sortedKeys(m map[int]string) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func first(m map[int]string) string {
	keys := sortedKeys(m)
	if len(keys) == 0 {
		return ""
	}
	return m[keys[0]]
}
