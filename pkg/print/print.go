package print

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/signintech/gopdf"
	"github.com/sirupsen/logrus"

	"report-scheduler/pkg/common"
)

const pageWidth = 595.28

// Renderer turns a panel render page into an image.
type Renderer interface {
	Screenshot(url string) ([]byte, error)
}

// RodRenderer screenshots pages in a headless browser, authenticating with basic auth.
type RodRenderer struct {
	Username string
	Password string
	Width    int
	Height   int
	Wait     time.Duration
	Timeout  time.Duration

	browser *rod.Browser
}

func NewRodRenderer(username, password string) *RodRenderer {
	wait := 2 * time.Second
	if common.PrintWaitSecond != "" {
		num, err := strconv.Atoi(common.PrintWaitSecond)
		if err != nil {
			logrus.Warnf("[Print] Invalid PRINT_WAIT_SECOND value, using default: %v", err)
		} else {
			wait = time.Duration(num) * time.Second
		}
	}

	return &RodRenderer{
		Username: username,
		Password: password,
		Width:    1000,
		Height:   500,
		Wait:     wait,
		Timeout:  2 * time.Minute,
	}
}

// Open launches the browser. It must be called before Screenshot.
func (r *RodRenderer) Open() error {
	path, ok := launcher.LookPath()
	if !ok {
		return fmt.Errorf("failed to find browser path")
	}

	u, err := launcher.New().Bin(path).Launch()
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err = browser.Connect(); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}
	if err = browser.IgnoreCertErrors(true); err != nil {
		browser.Close()
		return fmt.Errorf("failed to ignore cert errors: %w", err)
	}

	r.browser = browser
	return nil
}

func (r *RodRenderer) Close() {
	if r.browser == nil {
		return
	}
	if err := r.browser.Close(); err != nil {
		logrus.Warnf("[Print] Failed to close browser: %v", err)
	}
	r.browser = nil
}

func (r *RodRenderer) Screenshot(url string) ([]byte, error) {
	if r.browser == nil {
		return nil, fmt.Errorf("browser is not open")
	}

	page, err := r.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()

	if r.Username != "" {
		token := base64.StdEncoding.EncodeToString([]byte(r.Username + ":" + r.Password))
		cleanup, err := page.SetExtraHeaders([]string{"Authorization", "Basic " + token})
		if err != nil {
			return nil, fmt.Errorf("failed to set auth header: %w", err)
		}
		defer cleanup()
	}

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{Width: r.Width, Height: r.Height, DeviceScaleFactor: 1})
	if err != nil {
		return nil, fmt.Errorf("failed to set viewport: %w", err)
	}

	logrus.Debugf("[Print] Loading %s", url)
	if err = page.Timeout(r.Timeout).Navigate(url); err != nil {
		return nil, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err = page.Timeout(r.Timeout).WaitLoad(); err != nil {
		return nil, fmt.Errorf("failed to wait load of %s: %w", url, err)
	}

	// Panels keep querying after the load event.
	time.Sleep(r.Wait)

	screenshot, err := page.Screenshot(false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}

	return screenshot, nil
}

// PrintPanels renders every url and writes them as one PDF at path.
func PrintPanels(renderer Renderer, urls []string, path string) error {
	if len(urls) == 0 {
		return fmt.Errorf("no panels to print")
	}

	shots := make([][]byte, 0, len(urls))
	for _, u := range urls {
		shot, err := renderer.Screenshot(u)
		if err != nil {
			return err
		}
		shots = append(shots, shot)
	}

	return ToPDF(shots, path)
}

// ToPDF writes one page per image, each A4 wide and as tall as the scaled image.
func ToPDF(images [][]byte, path string) error {
	if err := os.MkdirAll(common.PrintShotPath(), 0755); err != nil {
		return fmt.Errorf("failed to create screenshot dir: %w", err)
	}
	shotDir, err := os.MkdirTemp(common.PrintShotPath(), "shots-")
	if err != nil {
		return fmt.Errorf("failed to create screenshot dir: %w", err)
	}
	defer os.RemoveAll(shotDir)

	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})

	for i, data := range images {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to decode image %d: %w", i, err)
		}
		if cfg.Width == 0 || cfg.Height == 0 {
			return fmt.Errorf("image %d is empty", i)
		}

		shotPath := filepath.Join(shotDir, fmt.Sprintf("panel-%d.png", i))
		if err = common.WriteFile(shotPath, data); err != nil {
			return err
		}

		rect := &gopdf.Rect{
			W: pageWidth,
			H: float64(cfg.Height) * pageWidth / float64(cfg.Width),
		}
		pdf.AddPageWithOption(gopdf.PageOption{PageSize: rect})
		if err = pdf.Image(shotPath, 0, 0, rect); err != nil {
			return fmt.Errorf("failed to add image %d to PDF: %w", i, err)
		}
	}

	if err = os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create PDF dir: %w", err)
	}
	if err = pdf.WritePdf(path); err != nil {
		return fmt.Errorf("failed to save PDF: %w", err)
	}

	logrus.Infof("[Print] PDF generated with %d page(s) at %s", len(images), path)
	return nil
}
