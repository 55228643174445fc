package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"os"
	"time"

	"github.com/disintegration/imaging"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/ftdi"

	"github.com/AndreRenaud/aurora_eink/epd"
	"github.com/AndreRenaud/aurora_eink/framebuf"
	"github.com/AndreRenaud/aurora_eink/internal/config"
	"github.com/AndreRenaud/aurora_eink/internal/log"
	"github.com/AndreRenaud/aurora_eink/internal/thermo"
)

// pins are the panel's control lines, however they were found.
type pins struct {
	cs, rst, discharge gpio.PinOut
	busy               gpio.PinIn
}

func findGPIO(ft232h *ftdi.FT232H, name string) (gpio.PinIO, error) {
	for _, h := range ft232h.Header() {
		if h.Name() == name {
			return h, nil
		}
	}
	return nil, fmt.Errorf("no such gpio %s", name)
}

// resolve looks up every configured line with lookup.
func resolve(cfg *config.Config, lookup func(name string) (gpio.PinIO, error)) (*pins, error) {
	var p pins
	for _, l := range []struct {
		name string
		set  func(gpio.PinIO)
	}{
		{cfg.Pins.CS, func(g gpio.PinIO) { p.cs = g }},
		{cfg.Pins.Reset, func(g gpio.PinIO) { p.rst = g }},
		{cfg.Pins.Discharge, func(g gpio.PinIO) { p.discharge = g }},
		{cfg.Pins.Busy, func(g gpio.PinIO) { p.busy = g }},
	} {
		g, err := lookup(l.name)
		if err != nil {
			return nil, err
		}
		l.set(g)
	}
	return &p, nil
}

// openFTDI uses the first FT232H on the USB bus, as on the breakout board.
func openFTDI(cfg *config.Config) (spi.Port, *pins, error) {
	all := ftdi.All()
	if len(all) == 0 {
		return nil, nil, errors.New("found no FTDI device on the USB bus")
	}
	ft232h, ok := all[0].(*ftdi.FT232H)
	if !ok {
		return nil, nil, errors.New("not FT232H device on the USB bus")
	}
	p, err := resolve(cfg, func(name string) (gpio.PinIO, error) {
		return findGPIO(ft232h, name)
	})
	if err != nil {
		return nil, nil, err
	}
	s, err := ft232h.SPI()
	if err != nil {
		return nil, nil, fmt.Errorf("spi: %w", err)
	}
	return s, p, nil
}

// openHost uses a host SPI port and gpioreg pins, e.g. on a Raspberry Pi.
func openHost(cfg *config.Config) (spi.Port, *pins, error) {
	p, err := resolve(cfg, func(name string) (gpio.PinIO, error) {
		if g := gpioreg.ByName(name); g != nil {
			return g, nil
		}
		return nil, fmt.Errorf("no such gpio %s", name)
	})
	if err != nil {
		return nil, nil, err
	}
	s, err := spireg.Open(cfg.SPIBus)
	if err != nil {
		return nil, nil, fmt.Errorf("spi %q: %w", cfg.SPIBus, err)
	}
	return s, p, nil
}

func getImageFromFilePath(filePath string) (image.Image, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

func savePNG(path string, fb *framebuf.Framebuffer) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, fb); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ambient returns the temperature to calibrate for: the configured value if
// there is one, otherwise a thermometer reading.
func ambient(ctx context.Context, cfg *config.Config) (int, error) {
	var r thermo.Reader
	if cfg.TemperatureC != nil {
		r = thermo.Fixed(thermo.FromCelsius(*cfg.TemperatureC))
	} else {
		r = thermo.NewI2CReader(cfg.Thermometer.Bus, cfg.Thermometer.Addr)
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	t, err := r.Read(ctx)
	if err != nil {
		return 0, err
	}
	return thermo.Celsius(t), nil
}

// draw renders the requested image and text into fb.
func draw(fb *framebuf.Framebuffer, imagePath, text string, rotate int) error {
	fb.Fill(framebuf.White)
	if imagePath != "" {
		logo, err := getImageFromFilePath(imagePath)
		if err != nil {
			return fmt.Errorf("load image: %w", err)
		}
		if rotate%360 != 0 {
			logo = imaging.Rotate(logo, float64(rotate), color.White)
		}
		epd.Render(fb, logo)
	}
	if text != "" {
		fb.Text(text, 2, 2, framebuf.Black, 1)
	}
	return nil
}

func run() error {
	configPath := flag.String("config", "aurora.yaml", "Configuration file, created with defaults if missing")
	imageFilename := flag.String("image", "", "Image to draw on the EInk")
	text := flag.String("text", "", "Text to draw, after the image")
	rotate := flag.Int("rotate", 0, "Image rotation angle, counter-clockwise")
	partial := flag.Bool("partial", false, "Use a differential update instead of a full refresh")
	preview := flag.Bool("preview", false, "Print the framebuffer to the terminal")
	renderOnly := flag.Bool("render-only", false, "Do not touch the hardware")
	pngOut := flag.String("png", "", "Also save the framebuffer as a PNG")
	flag.Parse()

	if *imageFilename == "" && *text == "" {
		return errors.New("must supply --image or --text")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	var font *framebuf.BitmapFont
	if cfg.Font != "" {
		if font, err = framebuf.LoadFont(cfg.Font); err != nil {
			return err
		}
	}

	if *renderOnly {
		fb := framebuf.New(font)
		if err := fb.SetRotation(framebuf.Rotation(cfg.Rotation)); err != nil {
			return err
		}
		if err := draw(fb, *imageFilename, *text, *rotate); err != nil {
			return err
		}
		return show(fb, *preview, *pngOut)
	}

	if _, err := host.Init(); err != nil {
		return err
	}
	var port spi.Port
	var p *pins
	switch cfg.Backend {
	case config.BackendFTDI:
		port, p, err = openFTDI(cfg)
	default:
		port, p, err = openHost(cfg)
	}
	if err != nil {
		return err
	}

	dev, err := epd.NewFromSPI(port, p.cs, p.rst, p.discharge, p.busy, &epd.Opts{
		MaxHz:       physic.Frequency(cfg.MaxHz) * physic.Hertz,
		FrameIters:  cfg.FrameIters,
		BusyTimeout: cfg.BusyTimeout,
		Font:        font,
		Rotation:    framebuf.Rotation(cfg.Rotation),
	})
	if err != nil {
		return fmt.Errorf("NewEPD: %w", err)
	}
	defer func() {
		if err := dev.Close(); err != nil {
			log.Error("close", err)
		}
	}()
	log.Info("panel ready", "dev", dev)

	if c, err := ambient(context.Background(), cfg); err != nil {
		log.Error("temperature", err, "fallback", epd.DefaultFrameRepeat)
	} else {
		dev.SetFrametimeByTemp(c)
		log.Info("calibrated", "celsius", c, "frame_repeat", dev.FrameRepeat())
	}

	if cfg.FastMode {
		if err := dev.EnableFastMode(); err != nil {
			return err
		}
	}

	if err := draw(dev.Framebuffer, *imageFilename, *text, *rotate); err != nil {
		return err
	}
	start := time.Now()
	if *partial {
		err = dev.UpdateImage()
	} else {
		err = dev.ChangeImage()
	}
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	log.Info("refreshed", "partial", *partial, "took", time.Since(start))
	return show(dev.Framebuffer, *preview, *pngOut)
}

func show(fb *framebuf.Framebuffer, preview bool, pngOut string) error {
	if preview {
		if err := printPreview(os.Stdout, fb); err != nil {
			return err
		}
	}
	if pngOut != "" {
		return savePNG(pngOut, fb)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Error("aurora_eink", err)
		os.Exit(1)
	}
}
