// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
	"go.uber.org/zap"

	"github.com/relabs-tech/shake_monitor/internal/sample"
)

// Sensor bridge sentences use NMEA 0183 framing with talker "SK":
//
//	$SKACC,<ax>,<ay>,<az>*CS   accelerometer, m/s²
//	$SKPRX,<distance_cm>*CS    proximity, cm
const (
	TalkerSensor  = "SK"
	TypeAccel     = "ACC"
	TypeProximity = "PRX"
)

// ErrNotSensorSentence is returned for valid NMEA that carries no sensor data.
var ErrNotSensorSentence = errors.New("not a sensor sentence")

// AccelSentence is a parsed $SKACC sentence.
type AccelSentence struct {
	nmea.BaseSentence
	Ax, Ay, Az float64
}

// ProximitySentence is a parsed $SKPRX sentence.
type ProximitySentence struct {
	nmea.BaseSentence
	DistanceCm float64
}

var sentenceParser = nmea.SentenceParser{
	CustomParsers: map[string]nmea.ParserFunc{
		TypeAccel:     parseAccel,
		TypeProximity: parseProximity,
	},
}

func parseAccel(s nmea.BaseSentence) (nmea.Sentence, error) {
	p := nmea.NewParser(s)
	p.AssertType(TypeAccel)
	m := AccelSentence{
		BaseSentence: s,
		Ax:           p.Float64(0, "ax"),
		Ay:           p.Float64(1, "ay"),
		Az:           p.Float64(2, "az"),
	}
	return m, p.Err()
}

func parseProximity(s nmea.BaseSentence) (nmea.Sentence, error) {
	p := nmea.NewParser(s)
	p.AssertType(TypeProximity)
	m := ProximitySentence{
		BaseSentence: s,
		DistanceCm:   p.Float64(0, "distance"),
	}
	return m, p.Err()
}

// ParseSentence turns one bridge line into a sensor event.
func ParseSentence(line string) (sample.Event, error) {
	sentence, err := sentenceParser.Parse(strings.TrimSpace(line))
	if err != nil {
		return sample.Event{}, err
	}

	switch m := sentence.(type) {
	case AccelSentence:
		return sample.AccelEvent("serial", sample.Accel{Ax: m.Ax, Ay: m.Ay, Az: m.Az}), nil
	case ProximitySentence:
		return sample.ProximityEvent("serial", m.DistanceCm), nil
	default:
		return sample.Event{}, fmt.Errorf("%w: %s", ErrNotSensorSentence, sentence.Prefix())
	}
}

// EncodeSentence formats ev as a bridge sentence with checksum.
func EncodeSentence(ev sample.Event) string {
	var body string
	switch ev.Kind {
	case sample.KindProximity:
		body = fmt.Sprintf("%s%s,%.2f", TalkerSensor, TypeProximity, ev.Proximity.DistanceCm)
	default:
		body = fmt.Sprintf("%s%s,%.3f,%.3f,%.3f", TalkerSensor, TypeAccel, ev.Accel.Ax, ev.Accel.Ay, ev.Accel.Az)
	}
	return "$" + body + "*" + nmea.Checksum(body)
}

type bridgeSource struct {
	opts serial.OpenOptions
	log  *zap.Logger
}

// NewSerialBridgeSource reads sensor sentences from a microcontroller on a
// serial port.
func NewSerialBridgeSource(portName string, baudRate int, log *zap.Logger) Source {
	return &bridgeSource{
		opts: serial.OpenOptions{
			PortName:              portName,
			BaudRate:              uint(baudRate),
			DataBits:              8,
			StopBits:              1,
			MinimumReadSize:       1,
			ParityMode:            serial.PARITY_NONE,
			InterCharacterTimeout: 0,
		},
		log: log,
	}
}

func (b *bridgeSource) Name() string { return "serial" }

func (b *bridgeSource) Run(ctx context.Context, out chan<- sample.Event) error {
	port, err := serial.Open(b.opts)
	if err != nil {
		return fmt.Errorf("serial bridge: open %s: %w", b.opts.PortName, err)
	}
	b.log.Info("serial bridge opened",
		zap.String("port", b.opts.PortName),
		zap.Uint("baud", b.opts.BaudRate),
	)

	// closing the port unblocks the pending read
	stop := context.AfterFunc(ctx, func() { port.Close() })
	defer func() {
		if stop() {
			port.Close()
		}
	}()

	return ReadSentences(ctx, port, out, b.log)
}

// ReadSentences parses bridge sentences from r until EOF or ctx is done.
// Unparseable lines are skipped.
func ReadSentences(ctx context.Context, r io.Reader, out chan<- sample.Event, log *zap.Logger) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if line = strings.TrimSpace(line); strings.HasPrefix(line, "$") {
			ev, perr := ParseSentence(line)
			switch {
			case perr == nil:
				if err := emit(ctx, out, ev); err != nil {
					return err
				}
			case errors.Is(perr, ErrNotSensorSentence):
				// other NMEA traffic on the same line
			default:
				// noisy line or partial sentence
				log.Debug("bridge parse error", zap.String("line", line), zap.Error(perr))
			}
		}

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("serial bridge read: %w", err)
		}
	}
}
