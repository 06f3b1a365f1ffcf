package clusterconfig

import "strings"

// AddSparkPackage добавляет Maven-пакет в spark.jars.packages (классификация spark-defaults).
func (b *Builder) AddSparkPackage(pkg string) (*Builder, error) {
	if b.readOnly {
		return nil, ErrReadOnly
	}

	packages := append(append([]string(nil), b.sparkPackages...), pkg)
	out, err := b.withClassification("spark-defaults", map[string]string{
		"spark.jars.packages": strings.Join(packages, ","),
	})
	if err != nil {
		return nil, err
	}
	out.sparkPackages = packages
	return out, nil
}

// AddSparkJars добавляет jar-файлы из артефакта в spark.jars и регистрирует
// артефакт в ConfigurationArtifacts.
func (b *Builder) AddSparkJars(artifact Artifact, jars ...string) (*Builder, error) {
	if b.readOnly {
		return nil, ErrReadOnly
	}

	all := append([]string(nil), b.sparkJars...)
	for _, jar := range jars {
		all = append(all, artifact.URI(jar))
	}
	out, err := b.withClassification("spark-defaults", map[string]string{
		"spark.jars": strings.Join(all, ","),
	})
	if err != nil {
		return nil, err
	}
	out.sparkJars = all
	out.artifacts = append(out.artifacts, artifact)
	return out, nil
}
