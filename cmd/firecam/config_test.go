package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllDefaults(t *testing.T) {
	conf, err := ParseConfig([]byte(""))
	require.NoError(t, err)
	require.NoError(t, conf.Validate())

	assert.Equal(t, Config{
		Camera:     "firecam",
		ListenAddr: ":5001",
		StoreFile:  "/etc/firecam/store.bin",
		RecordRoot: "/media/firecam/recordings",
		MACIface:   "eth0",

		ThermalSPI:      "",
		ThermalVsyncPin: "GPIO17",

		VisualSPI: "",

		PowerHoldPin: "GPIO24",
	}, *conf)
}

func TestAllSet(t *testing.T) {
	config := []byte(`
camera: "myhandheld"
listen-addr: ":9001"
store-file: "/tmp/store.bin"
record-root: "/tmp/recordings"
mac-iface: "wlan0"
thermal-spi: "SPI1.0"
thermal-vsync-pin: "GPIO5"
visual-spi: "SPI0.0"
power-hold-pin: "GPIO26"
`)

	conf, err := ParseConfig(config)
	require.NoError(t, err)
	require.NoError(t, conf.Validate())

	assert.Equal(t, Config{
		Camera:     "myhandheld",
		ListenAddr: ":9001",
		StoreFile:  "/tmp/store.bin",
		RecordRoot: "/tmp/recordings",
		MACIface:   "wlan0",

		ThermalSPI:      "SPI1.0",
		ThermalVsyncPin: "GPIO5",

		VisualSPI: "SPI0.0",

		PowerHoldPin: "GPIO26",
	}, *conf)
}

func TestEmptyCameraRejected(t *testing.T) {
	conf, err := ParseConfig([]byte("camera: \"\""))
	require.NoError(t, err)
	assert.EqualError(t, conf.Validate(), "camera name must not be empty")
}

func TestEmptyListenAddrRejected(t *testing.T) {
	conf, err := ParseConfig([]byte("listen-addr: \"\""))
	require.NoError(t, err)
	assert.EqualError(t, conf.Validate(), "listen-addr must not be empty")
}

func TestEmptyStoreFileRejected(t *testing.T) {
	conf, err := ParseConfig([]byte("store-file: \"\""))
	require.NoError(t, err)
	assert.EqualError(t, conf.Validate(), "store-file must not be empty")
}

func TestEmptyRecordRootRejected(t *testing.T) {
	conf, err := ParseConfig([]byte("record-root: \"\""))
	require.NoError(t, err)
	assert.EqualError(t, conf.Validate(), "record-root must not be empty")
}
