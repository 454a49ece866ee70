// Package quality scores recordings on stability, lighting, framing, and
// clarity from sampled grayscale frames. Analyzer failures degrade to a
// neutral score instead of failing the assessment.
package quality
