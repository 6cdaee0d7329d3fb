package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"autocloud.com/car-insurance-estimator/internal/apperr"
)

const (
	NoDescription    = "No description provided."
	ImageProvided    = "Provided"
	ImageNotProvided = "Not provided"
)

// DefaultSystemTemplate instructs the model how to read the inputs and format the report.
const DefaultSystemTemplate = `

Follow these instructions:
You are an expert car insurance assistant helping users estimate repair costs based on two inputs:
1. The user's description of the incident.
2. A photo of the damaged car.

Follow these rules:

Step 1: Analyze the user's description. If specific damaged parts are mentioned, use them to prioritize your damage report.

Step 2: Use the uploaded image to verify the description and check for visible damage. If the image shows no clear damage:
- Politely mention that the car appears undamaged from the image.
- Ask the user to upload a more detailed close-up image of the damage, or describe internal issues if any.

Step 3: If the image contradicts the description (e.g., user says bumper is damaged but image shows it's intact), say: "The image does not show visible signs of the described damage. Please confirm or upload a clearer image."

Step 4: If both the image and description are unclear, respond with: "Insufficient data to estimate the cost."

Step 5: Estimate repair costs using the provided reference table.

Output Format:
---
**Car Insurance Damage Report**
- Detected Parts Damaged: [List]
- Damage Severity: [Mild / Moderate / Severe]
- Estimated Repair Costs:
  - Part: $Amount
- Total Estimated Claim: $Amount
---

If applicable:
- Note: The car appears undamaged in the image provided. Please upload a more detailed photo or describe internal damage.

`

// DamageReportRequest is one user submission. Both fields are optional.
type DamageReportRequest struct {
	Description string
	Image       *Image
}

// Prompt is the assembled model input: one text part and an optional image part.
// It is not modified after Assemble returns.
type Prompt struct {
	text  string
	image *Image
}

func (p *Prompt) Text() string {
	return p.text
}

func (p *Prompt) HasImage() bool {
	return p.image != nil
}

// Parts returns the content parts in submission order.
func (p *Prompt) Parts() []genai.Part {
	parts := []genai.Part{genai.Text(p.text)}
	if p.image != nil {
		parts = append(parts, genai.Blob{MIMEType: p.image.MIMEType, Data: p.image.Data})
	}
	return parts
}

// UserContext renders the line describing what the user supplied.
func UserContext(description string, hasImage bool) string {
	description = strings.TrimSpace(description)
	if description == "" {
		description = NoDescription
	}
	marker := ImageNotProvided
	if hasImage {
		marker = ImageProvided
	}
	return fmt.Sprintf("User Description:%s\n    Image: %s", description, marker)
}

// Assemble concatenates template, reference block and user context, in that
// order and without separators, and attaches the image when there is one.
func Assemble(systemTemplate, referenceBlock string, req DamageReportRequest) (*Prompt, error) {
	if req.Image != nil {
		if err := req.Image.validate(); err != nil {
			return nil, apperr.New(apperr.KindImageEncoding, "assemble prompt", err)
		}
	}

	var b strings.Builder
	b.WriteString(systemTemplate)
	b.WriteString(referenceBlock)
	b.WriteString(UserContext(req.Description, req.Image != nil))

	p := &Prompt{text: b.String()}
	if req.Image != nil {
		img := *req.Image
		img.Data = append([]byte(nil), req.Image.Data...)
		p.image = &img
	}
	return p, nil
}

func (img *Image) validate() error {
	if len(img.Data) == 0 {
		return errors.New("image is empty")
	}
	if !strings.HasPrefix(img.MIMEType, "image/") {
		return fmt.Errorf("unsupported image type %q", img.MIMEType)
	}
	return nil
}
