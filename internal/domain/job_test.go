package domain

import "testing"

func TestCreateJobRequestValidate(t *testing.T) {
	valid := CreateJobRequest{
		SourceType: SourceTypeS3Presigned,
		Outputs: []OutputSpec{
			{ID: "web", Format: "jpeg", Quality: 80},
			{ID: "archive", Format: "png"},
		},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid request, got error: %v", err)
	}

	empty := CreateJobRequest{}
	if err := empty.Validate(); err == nil {
		t.Fatal("expected validation error for empty request")
	}

	missingObjectKey := CreateJobRequest{
		SourceType: SourceTypeLocalFile,
		Outputs:    []OutputSpec{{ID: "web", Format: "png"}},
	}
	if err := missingObjectKey.Validate(); err == nil {
		t.Fatal("expected validation error for missing local_file object_key")
	}

	unknownFormat := CreateJobRequest{
		SourceType: SourceTypeS3Presigned,
		Outputs:    []OutputSpec{{ID: "web", Format: "avif"}},
	}
	if err := unknownFormat.Validate(); err == nil {
		t.Fatal("expected validation error for unknown format name")
	}

	webpTarget := CreateJobRequest{
		SourceType: SourceTypeS3Presigned,
		Outputs:    []OutputSpec{{ID: "web", Format: "webp"}},
	}
	if err := webpTarget.Validate(); err == nil {
		t.Fatal("expected validation error for non-encodable webp target")
	}

	jpgAlias := CreateJobRequest{
		SourceType: SourceTypeS3Presigned,
		Outputs:    []OutputSpec{{ID: "web", Format: "JPG"}},
	}
	if err := jpgAlias.Validate(); err != nil {
		t.Fatalf("expected jpg alias to validate, got error: %v", err)
	}
}
