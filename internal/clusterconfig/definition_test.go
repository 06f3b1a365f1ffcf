package clusterconfig

import (
	"context"
	"errors"
	"testing"

	"github.com/shaiso/Launchpad/internal/param"
)

const groupsDefinition = `
name: etl-cluster
namespace: analytics
description: nightly etl
applications: [Hadoop, Spark]
use_glue_catalog: false
tags:
  team: data
bootstrap_actions:
  - name: install-deps
    path: s3://artifacts/bootstrap/install.sh
    args: [--fast]
    artifact:
      bucket: artifacts
      path: bootstrap
profile: instance-groups
instance_groups:
  subnet: '{{ param "/launchpad/network/subnet" }}'
  core_instance_count: 4
autoscaling:
  maximum_instance_count: 12
spark_packages:
  - org.apache.hudi:hudi-spark-bundle_2.11:0.5.2
`

func TestDefinition_Build(t *testing.T) {
	def, err := ParseDefinition([]byte(groupsDefinition))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	b, err := def.Build(context.Background(), param.Static{"/launchpad/network/subnet": "subnet-9"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	tree := b.Tree()

	checks := []struct {
		path string
		want any
	}{
		{"Name", "etl-cluster"},
		{"Applications.1.Name", "Spark"},
		{"Instances.Ec2SubnetId", "subnet-9"},
		{"Instances.InstanceGroups.1.InstanceCount", int64(4)},
		{"Instances.InstanceGroups.2.AutoScalingPolicy.Constraints.MaxCapacity", int64(12)},
		{"BootstrapActions.0.ScriptBootstrapAction.Args.0", "--fast"},
		{"Tags.0.Key", "team"},
		{"Configurations.2.Classification", "spark-defaults"},
	}
	for _, c := range checks {
		if got := read(t, tree, c.path); got != c.want {
			t.Errorf("%s = %#v, want %#v", c.path, got, c.want)
		}
	}

	// Без Glue-каталога классификации добавляются с пустыми свойствами.
	if props := read(t, tree, "Configurations.0.Properties"); props == nil {
		t.Error("hive-site properties should be an empty mapping")
	}

	if b.Namespace() != "analytics" {
		t.Errorf("unexpected namespace %s", b.Namespace())
	}
	if len(b.Artifacts()) != 1 {
		t.Errorf("bootstrap artifact should be recorded, got %v", b.Artifacts())
	}
}

func TestDefinition_UnknownProfile(t *testing.T) {
	def := &Definition{Name: "x", Profile: "spot-only"}
	if _, err := def.Build(context.Background(), nil); !errors.Is(err, ErrUnknownProfile) {
		t.Errorf("expected ErrUnknownProfile, got %v", err)
	}
}

func TestParseDefinition_MissingName(t *testing.T) {
	if _, err := ParseDefinition([]byte("profile: instance-groups\n")); !errors.Is(err, ErrEmptyName) {
		t.Errorf("expected ErrEmptyName, got %v", err)
	}
}

func TestParseDefinition_JSON(t *testing.T) {
	def, err := ParseDefinition([]byte(`{"name":"fleet","profile":"instance-fleets","instance_fleets":{"subnets":["a"],"core_spot_count":3},"managed_scaling":{}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	b, err := def.Build(context.Background(), nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	tree := b.Tree()
	if read(t, tree, "Instances.InstanceFleets.1.TargetSpotCapacity") != int64(3) {
		t.Error("unexpected spot count")
	}
	if read(t, tree, "ManagedScalingPolicy.ComputeLimits.MaximumCapacityUnits") != int64(10) {
		t.Error("unexpected managed scaling maximum")
	}
}
