//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Builds and runs the testbed. FRAMER_CONFIG overrides the config path.
func (Run) Engine() error {
	mg.Deps(Build.Engine)

	cfg := os.Getenv("FRAMER_CONFIG")
	if cfg == "" {
		cfg = "framer.toml"
	}
	fmt.Println("Run engine...")
	if _, err := executeCmd(binary, withArgs("-config", cfg), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the testbed with the Vulkan validation layers loaded.
func (Run) Validation() error {
	mg.Deps(Build.Engine)

	fmt.Println("Run engine with validation layers...")
	if _, err := executeCmd(binary, withArgs("-config", "framer.toml"), withEnv("VK_INSTANCE_LAYERS=VK_LAYER_KHRONOS_validation"), withStream()); err != nil {
		return err
	}
	return nil
}
