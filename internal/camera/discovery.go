package camera

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	videoDevicePattern = regexp.MustCompile(`^/dev/video\d+$`)
	videoNumberPattern = regexp.MustCompile(`video(\d+)`)
)

// LinuxDiscovery はLinux環境でのカメラデバイス検出を実装する
type LinuxDiscovery struct {
	// テスト用に差し替え可能
	glob     func(pattern string) ([]string, error)
	v4l2Info func(ctx context.Context, device string, args ...string) (string, error)
}

// NewLinuxDiscovery は新しいLinuxDiscoveryを作成する
func NewLinuxDiscovery() *LinuxDiscovery {
	return &LinuxDiscovery{
		glob:     filepath.Glob,
		v4l2Info: runV4L2Ctl,
	}
}

// ScanDevices はシステム内の利用可能なカメラデバイスをスキャンする
func (d *LinuxDiscovery) ScanDevices(ctx context.Context) ([]VideoDevice, error) {
	if runtime.GOOS != "linux" {
		return nil, ErrUnsupported
	}

	matches, err := d.glob("/dev/video*")
	if err != nil {
		return nil, fmt.Errorf("デバイスのスキャンに失敗: %w", err)
	}

	// デバイス番号でソート
	sort.Slice(matches, func(i, j int) bool {
		return extractDeviceNumber(matches[i]) < extractDeviceNumber(matches[j])
	})

	devices := make([]VideoDevice, 0, len(matches))
	for _, match := range matches {
		select {
		case <-ctx.Done():
			return devices, ctx.Err()
		default:
		}

		if !d.isAvailable(match) {
			continue
		}
		// メタデータ用ノードやグレースケールのみのノードは除外
		if !d.isMainCamera(ctx, match, matches) {
			continue
		}

		devices = append(devices, VideoDevice{
			ID:    match,
			Label: d.deviceName(ctx, match),
		})
	}

	return devices, nil
}

// isAvailable はデバイスファイルが開けるかチェックする
func (d *LinuxDiscovery) isAvailable(device string) bool {
	if !videoDevicePattern.MatchString(device) {
		return false
	}

	file, err := os.OpenFile(device, os.O_RDONLY, 0)
	if err != nil {
		return false
	}
	_ = file.Close()
	return true
}

// isMainCamera はデバイスがカラー映像を出すメインのノードか判定する
func (d *LinuxDiscovery) isMainCamera(ctx context.Context, device string, all []string) bool {
	formats, err := d.v4l2Info(ctx, device, "--list-formats-ext")
	if err != nil {
		// v4l2-ctl がない環境ではフィルタしない
		return true
	}
	if !hasColorFormat(formats) {
		return false
	}

	// 同じ物理カメラの複数ノードは最も小さい番号を採用する
	num := extractDeviceNumber(device)
	name := d.deviceName(ctx, device)
	if name == "" {
		return true
	}
	for _, sibling := range all {
		if extractDeviceNumber(sibling) >= num {
			continue
		}
		siblingFormats, err := d.v4l2Info(ctx, sibling, "--list-formats-ext")
		if err != nil || !hasColorFormat(siblingFormats) {
			continue
		}
		if d.deviceName(ctx, sibling) == name {
			return false
		}
	}
	return true
}

// deviceName はv4l2-ctlのCard typeを返す。取得できなければ空文字
func (d *LinuxDiscovery) deviceName(ctx context.Context, device string) string {
	output, err := d.v4l2Info(ctx, device, "--info")
	if err != nil {
		return ""
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Card type") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) == 2 {
			return strings.TrimSpace(parts[1])
		}
	}
	return ""
}

func hasColorFormat(formats string) bool {
	return strings.Contains(formats, "YUYV") || strings.Contains(formats, "MJPG")
}

// runV4L2Ctl はv4l2-ctlを実行して出力を返す
func runV4L2Ctl(ctx context.Context, device string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmdArgs := append([]string{"--device", device}, args...)
	output, err := exec.CommandContext(ctx, "v4l2-ctl", cmdArgs...).Output()
	if err != nil {
		return "", err
	}
	return string(output), nil
}

// extractDeviceNumber はデバイスパスから番号を抽出する
func extractDeviceNumber(device string) int {
	matches := videoNumberPattern.FindStringSubmatch(device)
	if len(matches) < 2 {
		return 0
	}

	num, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0
	}
	return num
}

// SyntheticDiscovery はテストパターン用の仮想デバイスを報告する
// 名前は空のまま返すので、選択欄には位置番号の名前が付く
type SyntheticDiscovery struct {
	count int
}

// NewSyntheticDiscovery はcount台の仮想デバイスを持つDiscoveryを作成する
func NewSyntheticDiscovery(count int) *SyntheticDiscovery {
	if count <= 0 {
		count = 1
	}
	return &SyntheticDiscovery{count: count}
}

// ScanDevices は仮想デバイス一覧を返す
func (s *SyntheticDiscovery) ScanDevices(_ context.Context) ([]VideoDevice, error) {
	devices := make([]VideoDevice, s.count)
	for i := range devices {
		devices[i] = VideoDevice{ID: syntheticDeviceID(i)}
	}
	return devices, nil
}

func syntheticDeviceID(i int) string {
	return fmt.Sprintf("synthetic:%d", i)
}

// MockDiscovery はテスト用のモックDiscovery実装
type MockDiscovery struct {
	devices []VideoDevice
	err     error
	calls   int
}

// NewMockDiscovery は新しいMockDiscoveryを作成する
func NewMockDiscovery(devices ...VideoDevice) *MockDiscovery {
	return &MockDiscovery{devices: devices}
}

// ScanDevices はモックデバイス一覧を返す
func (m *MockDiscovery) ScanDevices(_ context.Context) ([]VideoDevice, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]VideoDevice, len(m.devices))
	copy(out, m.devices)
	return out, nil
}

// SetError はテスト用にスキャン失敗を設定する
func (m *MockDiscovery) SetError(err error) {
	m.err = err
}

// Calls はScanDevicesの呼び出し回数を返す
func (m *MockDiscovery) Calls() int {
	return m.calls
}
