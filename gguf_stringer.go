package bitnet

import "strconv"

// String implements fmt.Stringer, using the trailing line comment where one
// is present on the constant (mirrors the stringer -linecomment convention).
func (m GGUFMagic) String() string {
	switch m {
	case GGUFMagicGGML:
		return "GGUFMagicGGML"
	case GGUFMagicGGMF:
		return "GGUFMagicGGMF"
	case GGUFMagicGGJT:
		return "GGUFMagicGGJT"
	case GGUFMagicGGUFLe:
		return "GGUF"
	case GGUFMagicGGUFBe:
		return "GGUF"
	default:
		return "GGUFMagic(" + strconv.FormatUint(uint64(m), 10) + ")"
	}
}

func (v GGUFVersion) String() string {
	switch v {
	case GGUFVersionV1:
		return "V1"
	case GGUFVersionV2:
		return "V2"
	case GGUFVersionV3:
		return "V3"
	default:
		return "GGUFVersion(" + strconv.FormatUint(uint64(v), 10) + ")"
	}
}

func (t GGUFMetadataValueType) String() string {
	switch t {
	case GGUFMetadataValueTypeUint8:
		return "Uint8"
	case GGUFMetadataValueTypeInt8:
		return "Int8"
	case GGUFMetadataValueTypeUint16:
		return "Uint16"
	case GGUFMetadataValueTypeInt16:
		return "Int16"
	case GGUFMetadataValueTypeUint32:
		return "Uint32"
	case GGUFMetadataValueTypeInt32:
		return "Int32"
	case GGUFMetadataValueTypeFloat32:
		return "Float32"
	case GGUFMetadataValueTypeBool:
		return "Bool"
	case GGUFMetadataValueTypeString:
		return "String"
	case GGUFMetadataValueTypeArray:
		return "Array"
	case GGUFMetadataValueTypeUint64:
		return "Uint64"
	case GGUFMetadataValueTypeInt64:
		return "Int64"
	case GGUFMetadataValueTypeFloat64:
		return "Float64"
	default:
		return "Unknown"
	}
}

func (t GGMLType) String() string {
	switch t {
	case GGMLTypeF32:
		return "F32"
	case GGMLTypeF16:
		return "F16"
	case GGMLTypeQ4_0:
		return "Q4_0"
	case GGMLTypeQ4_1:
		return "Q4_1"
	case GGMLTypeQ4_2:
		return "Q4_2"
	case GGMLTypeQ4_3:
		return "Q4_3"
	case GGMLTypeQ5_0:
		return "Q5_0"
	case GGMLTypeQ5_1:
		return "Q5_1"
	case GGMLTypeQ8_0:
		return "Q8_0"
	case GGMLTypeQ8_1:
		return "Q8_1"
	case GGMLTypeQ2_K:
		return "Q2_K"
	case GGMLTypeQ3_K:
		return "Q3_K"
	case GGMLTypeQ4_K:
		return "Q4_K"
	case GGMLTypeQ5_K:
		return "Q5_K"
	case GGMLTypeQ6_K:
		return "Q6_K"
	case GGMLTypeQ8_K:
		return "Q8_K"
	case GGMLTypeIQ2_XXS:
		return "IQ2_XXS"
	case GGMLTypeIQ2_XS:
		return "IQ2_XS"
	case GGMLTypeIQ3_XXS:
		return "IQ3_XXS"
	case GGMLTypeIQ1_S:
		return "IQ1_S"
	case GGMLTypeIQ4_NL:
		return "IQ4_NL"
	case GGMLTypeIQ3_S:
		return "IQ3_S"
	case GGMLTypeIQ2_S:
		return "IQ2_S"
	case GGMLTypeIQ4_XS:
		return "IQ4_XS"
	case GGMLTypeI8:
		return "I8"
	case GGMLTypeI16:
		return "I16"
	case GGMLTypeI32:
		return "I32"
	case GGMLTypeI64:
		return "I64"
	case GGMLTypeF64:
		return "F64"
	case GGMLTypeIQ1_M:
		return "IQ1_M"
	case GGMLTypeBF16:
		return "BF16"
	case GGMLTypeQ4_0_4_4:
		return "Q4_0_4_4"
	case GGMLTypeQ4_0_4_8:
		return "Q4_0_4_8"
	case GGMLTypeQ4_0_8_8:
		return "Q4_0_8_8"
	case GGMLTypeTQ1_0:
		return "TQ1_0"
	case GGMLTypeTQ2_0:
		return "TQ2_0"
	// Wire tag 36 is exclusively I2_S in this parser; see GGMLTypeI2S.
	case GGMLTypeI2S:
		return "I2_S"
	case GGMLTypeIQ4_NL_4_8:
		return "IQ4_NL_4_8"
	case GGMLTypeIQ4_NL_8_8:
		return "IQ4_NL_8_8"
	case GGMLTypeMXFP4:
		return "MXFP4"
	default:
		return "Unknown"
	}
}

func (t GGUFFileType) String() string {
	switch t {
	case GGUFFileTypeMostlyF32:
		return "MOSTLY_F32"
	case GGUFFileTypeMostlyF16:
		return "MOSTLY_F16"
	case GGUFFileTypeMostlyQ4_0:
		return "MOSTLY_Q4_0"
	case GGUFFileTypeMostlyQ4_1:
		return "MOSTLY_Q4_1"
	case GGUFFileTypeMostlyQ4_1_SOME_F16:
		return "MOSTLY_Q4_1_SOME_F16"
	case GGUFFileTypeMostlyQ4_2:
		return "MOSTLY_Q4_2"
	case GGUFFileTypeMostlyQ4_3:
		return "MOSTLY_Q4_3"
	case GGUFFileTypeMostlyQ8_0:
		return "MOSTLY_Q8_0"
	case GGUFFileTypeMostlyQ5_0:
		return "MOSTLY_Q5_0"
	case GGUFFileTypeMostlyQ5_1:
		return "MOSTLY_Q5_1"
	case GGUFFileTypeMostlyQ2_K:
		return "MOSTLY_Q2_K"
	case GGUFFileTypeMostlyQ3_K_S:
		return "MOSTLY_Q3_K_S"
	case GGUFFileTypeMostlyQ3_K_M:
		return "MOSTLY_Q3_K_M"
	case GGUFFileTypeMostlyQ3_K_L:
		return "MOSTLY_Q3_K_L"
	case GGUFFileTypeMostlyQ4_K_S:
		return "MOSTLY_Q4_K_S"
	case GGUFFileTypeMostlyQ4_K_M:
		return "MOSTLY_Q4_K_M"
	case GGUFFileTypeMostlyQ5_K_S:
		return "MOSTLY_Q5_K_S"
	case GGUFFileTypeMostlyQ5_K_M:
		return "MOSTLY_Q5_K_M"
	case GGUFFileTypeMostlyQ6_K:
		return "MOSTLY_Q6_K"
	case GGUFFileTypeMostlyIQ2_XXS:
		return "MOSTLY_IQ2_XXS"
	case GGUFFileTypeMostlyIQ2_XS:
		return "MOSTLY_IQ2_XS"
	case GGUFFileTypeMostlyQ2_K_S:
		return "MOSTLY_Q2_K_S"
	case GGUFFileTypeMostlyIQ3_XS:
		return "MOSTLY_IQ3_XS"
	case GGUFFileTypeMostlyIQ3_XXS:
		return "MOSTLY_IQ3_XXS"
	case GGUFFileTypeMostlyIQ1_S:
		return "MOSTLY_IQ1_S"
	case GGUFFileTypeMostlyIQ4_NL:
		return "MOSTLY_IQ4_NL"
	case GGUFFileTypeMostlyIQ3_S:
		return "MOSTLY_IQ3_S"
	case GGUFFileTypeMostlyIQ3_M:
		return "MOSTLY_IQ3_M"
	case GGUFFileTypeMostlyIQ2_S:
		return "MOSTLY_IQ2_S"
	case GGUFFileTypeMostlyIQ2_M:
		return "MOSTLY_IQ2_M"
	case GGUFFileTypeMostlyIQ4_XS:
		return "MOSTLY_IQ4_XS"
	case GGUFFileTypeMostlyIQ1_M:
		return "MOSTLY_IQ1_M"
	case GGUFFileTypeMostlyBF16:
		return "MOSTLY_BF16"
	case GGUFFileTypeMostlyQ4_0_4_4:
		return "MOSTLY_Q4_0_4_4"
	case GGUFFileTypeMostlyQ4_0_4_8:
		return "MOSTLY_Q4_0_4_8"
	case GGUFFileTypeMostlyQ4_0_8_8:
		return "MOSTLY_Q4_0_8_8"
	case GGUFFileTypeMostlyTQ1_0:
		return "MOSTLY_TQ1_0"
	case GGUFFileTypeMostlyTQ2_0:
		return "MOSTLY_TQ2_0"
	case GGUFFileTypeMostlyMXFP4:
		return "MOSTLY_MXFP4"
	default:
		return "Unknown"
	}
}
