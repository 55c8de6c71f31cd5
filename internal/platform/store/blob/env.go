package blob

import "bazaar/internal/platform/config"

// ConfigFromEnv reads STORAGE_* and S3_* from c
func ConfigFromEnv(c config.Conf) Config {
	st, s3 := c.Prefix("STORAGE_"), c.Prefix("S3_")
	return Config{
		Enabled:    st.MayBool("ENABLED", true),
		Provider:   Provider(st.MayEnum("PROVIDER", string(ProviderLocal), string(ProviderLocal), string(ProviderS3))),
		LocalRoot:  st.MayString("LOCAL_ROOT", DefaultLocalRoot),
		PublicBase: st.MayString("PUBLIC_BASE", DefaultPublicBase),
		Limits: Limits{
			MaxBytes:     st.MayInt64("MAX_BYTES", DefaultMaxBytes),
			AllowedTypes: st.MayCSV("ALLOWED_TYPES", DefaultAllowedTypes),
		},
		S3: S3Config{
			Bucket:          s3.MayString("BUCKET", ""),
			Region:          s3.MayString("REGION", ""),
			Endpoint:        s3.MayString("ENDPOINT", ""),
			ForcePathStyle:  s3.MayBool("FORCE_PATH_STYLE", false),
			AccessKeyID:     s3.MayString("ACCESS_KEY_ID", ""),
			SecretAccessKey: s3.MayString("SECRET_ACCESS_KEY", ""),
			ACL:             s3.MayString("ACL", ""),
			CDNURL:          s3.MayString("CDN_URL", ""),
		},
	}
}
